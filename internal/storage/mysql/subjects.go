package mysql

import (
	"context"
	"fmt"

	"fab-recon/internal/storage"
)

// Размер пачки для IN-выборки субъектов: их может быть десятки тысяч за месяц.
const subjectChunkSize = 1000

// FetchSubjectMappings читает поля субъектов сразу с разрешённым текстом:
// EAV-связка timerecordsubjectfieldmappings -> timerecordsubjectfields
// схлопывается в плоский список (subject, вид поля, текст).
func (s *Storage) FetchSubjectMappings(ctx context.Context, subjectIDs []int64) ([]storage.SubjectFieldMapping, error) {
	const op = "storage.mysql.FetchSubjectMappings"

	var mappings []storage.SubjectFieldMapping

	for start := 0; start < len(subjectIDs); start += subjectChunkSize {
		end := start + subjectChunkSize
		if end > len(subjectIDs) {
			end = len(subjectIDs)
		}

		in, args := inClause(subjectIDs[start:end])
		stmt := `
			SELECT tsfm.TimeRecordSubjectID, tsfm.SubjectFieldID,
			       COALESCE(tsf.SubjectFieldValue, '')
			FROM timerecordsubjectfieldmappings tsfm
			LEFT JOIN timerecordsubjectfields tsf
				ON tsfm.TimeRecordSubjectFieldID = tsf.TimeRecordSubjectFieldID
			WHERE tsfm.TimeRecordSubjectID IN ` + in

		rows, err := s.db.QueryContext(ctx, stmt, args...)
		if err != nil {
			return nil, fmt.Errorf("%s: ошибка выборки полей субъектов: %w", op, err)
		}
		for rows.Next() {
			var m storage.SubjectFieldMapping
			if err := rows.Scan(&m.SubjectID, &m.FieldKind, &m.Value); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%s: ошибка сканирования: %w", op, err)
			}
			mappings = append(mappings, m)
		}
		if err := closeRows(rows); err != nil {
			return nil, fmt.Errorf("%s: ошибка итерации: %w", op, err)
		}
	}

	return mappings, nil
}
