package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"fab-recon/internal/storage"
)

// FetchTimeRecords выбирает записи времени за период. Фильтры применяются
// здесь, в SQL — до агрегации, чтобы итоги отражали только выбранное.
func (s *Storage) FetchTimeRecords(ctx context.Context, filter storage.TimeRecordFilter) ([]storage.TimeRecord, error) {
	const op = "storage.mysql.FetchTimeRecords"

	stmt := `
		SELECT
			tr.TimeRecordID, tr.ProjectID, tr.StationID, tr.EmployeeUserID,
			tr.StartDate, tr.RegularHours, tr.OvertimeHours, tr.Overtime2Hours,
			tr.TimeRecordSubjectID
		FROM timerecords tr
		WHERE tr.StartDate >= ? AND tr.StartDate < ?
	`
	args := []interface{}{filter.From, filter.To}

	if len(filter.ProjectIDs) > 0 {
		in, inArgs := inClause(filter.ProjectIDs)
		stmt += " AND tr.ProjectID IN " + in
		args = append(args, inArgs...)
	}
	stmt += " ORDER BY tr.TimeRecordID"

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка выборки записей времени: %w", op, err)
	}
	defer rows.Close()

	var records []storage.TimeRecord
	for rows.Next() {
		var (
			r                 storage.TimeRecord
			projectID         sql.NullInt64
			stationID         sql.NullInt64
			employeeUserID    sql.NullInt64
			subjectID         sql.NullInt64
			regular, ot1, ot2 sql.NullFloat64
		)
		err := rows.Scan(
			&r.TimeRecordID,
			&projectID,
			&stationID,
			&employeeUserID,
			&r.StartDate,
			&regular,
			&ot1,
			&ot2,
			&subjectID,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: ошибка сканирования: %w", op, err)
		}
		r.ProjectID = nullInt64Ptr(projectID)
		r.StationID = nullInt64Ptr(stationID)
		r.EmployeeUserID = nullInt64Ptr(employeeUserID)
		r.SubjectID = nullInt64Ptr(subjectID)
		r.RegularHours = regular.Float64
		r.OvertimeHours = ot1.Float64
		r.Overtime2Hours = ot2.Float64
		records = append(records, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: ошибка итерации: %w", op, err)
	}

	return records, nil
}

// FetchItemStations читает отметки прохождения станций (только завершённые).
func (s *Storage) FetchItemStations(ctx context.Context, jobIDs []int64) ([]storage.ItemStation, error) {
	const op = "storage.mysql.FetchItemStations"

	stmt := `
		SELECT
			pcis.ProductionControlID, pcis.MainMark, pcis.PieceMark,
			pcis.SequenceID, pcis.StationID, pcis.Quantity,
			pcis.DateCompleted, pcis.Hours, pcis.UserID
		FROM productioncontrolitemstations pcis
		WHERE pcis.DateCompleted IS NOT NULL
	`
	var args []interface{}
	if len(jobIDs) > 0 {
		in, inArgs := inClause(jobIDs)
		stmt += ` AND pcis.ProductionControlID IN (
			SELECT pcj.ProductionControlID FROM productioncontroljobs pcj WHERE pcj.ProjectID IN ` + in + `)`
		args = append(args, inArgs...)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка выборки отметок станций: %w", op, err)
	}
	defer rows.Close()

	var stations []storage.ItemStation
	for rows.Next() {
		var (
			st         storage.ItemStation
			sequenceID sql.NullInt64
			stationID  sql.NullInt64
			userID     sql.NullInt64
			completed  sql.NullTime
			hours      sql.NullFloat64
		)
		err := rows.Scan(
			&st.ProductionControlID,
			&st.MainMark,
			&st.PieceMark,
			&sequenceID,
			&stationID,
			&st.Quantity,
			&completed,
			&hours,
			&userID,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: ошибка сканирования: %w", op, err)
		}
		st.SequenceID = nullInt64Ptr(sequenceID)
		st.StationID = nullInt64Ptr(stationID)
		st.UserID = nullInt64Ptr(userID)
		if completed.Valid {
			t := completed.Time
			st.DateCompleted = &t
		}
		st.Hours = hours.Float64
		stations = append(stations, st)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: ошибка итерации: %w", op, err)
	}

	return stations, nil
}
