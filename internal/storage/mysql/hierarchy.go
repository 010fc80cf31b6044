package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"fab-recon/internal/storage"
)

// FetchHierarchy читает снимок производственной иерархии: заказы, секвенции,
// изделия, станции и привязку станций к группам. Снимок строится один раз
// на прогон, дальше движок его только читает.
func (s *Storage) FetchHierarchy(ctx context.Context, jobIDs []int64) (*storage.HierarchySnapshot, error) {
	const op = "storage.mysql.FetchHierarchy"

	snap := &storage.HierarchySnapshot{}

	// Заказы.
	stmtJobs := `SELECT p.ProjectID, p.JobNumber, COALESCE(p.JobDescription, '') FROM projects p`
	var args []interface{}
	if len(jobIDs) > 0 {
		in, inArgs := inClause(jobIDs)
		stmtJobs += " WHERE p.ProjectID IN " + in
		args = inArgs
	}
	rows, err := s.db.QueryContext(ctx, stmtJobs, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка выборки заказов: %w", op, err)
	}
	for rows.Next() {
		var j storage.Job
		if err := rows.Scan(&j.ProjectID, &j.JobNumber, &j.Description); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: ошибка сканирования заказа: %w", op, err)
		}
		snap.Jobs = append(snap.Jobs, j)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Производственные заказы с привязкой сметы.
	stmtProd := `
		SELECT pcj.ProductionControlID, pcj.ProjectID, pcj.EstimateID,
		       pcj.TotalManHours, pcj.TotalWeight
		FROM productioncontroljobs pcj`
	args = nil
	if len(jobIDs) > 0 {
		in, inArgs := inClause(jobIDs)
		stmtProd += " WHERE pcj.ProjectID IN " + in
		args = inArgs
	}
	rows, err = s.db.QueryContext(ctx, stmtProd, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка выборки производственных заказов: %w", op, err)
	}
	prodIDs := make([]int64, 0)
	for rows.Next() {
		var (
			pj         storage.ProductionJob
			estimateID sql.NullInt64
			manHours   sql.NullFloat64
			weight     sql.NullFloat64
		)
		if err := rows.Scan(&pj.ProductionControlID, &pj.ProjectID, &estimateID, &manHours, &weight); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: ошибка сканирования производственного заказа: %w", op, err)
		}
		pj.EstimateID = nullInt64Ptr(estimateID)
		pj.TotalManHours = nullFloat64Ptr(manHours)
		pj.TotalWeight = nullFloat64Ptr(weight)
		snap.ProductionJobs = append(snap.ProductionJobs, pj)
		prodIDs = append(prodIDs, pj.ProductionControlID)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(prodIDs) > 0 {
		if err := s.fetchSequences(ctx, snap, prodIDs); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := s.fetchItems(ctx, snap, prodIDs); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	// Станции и группы — маленькие справочники, читаем целиком.
	rows, err = s.db.QueryContext(ctx, `SELECT st.StationID, COALESCE(st.Description, '') FROM stations st`)
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка выборки станций: %w", op, err)
	}
	for rows.Next() {
		var st storage.Station
		if err := rows.Scan(&st.StationID, &st.Description); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: ошибка сканирования станции: %w", op, err)
		}
		snap.Stations = append(snap.Stations, st)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT lg.LaborGroupID, COALESCE(lg.Description, '') FROM laborgroups lg`)
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка выборки групп: %w", op, err)
	}
	for rows.Next() {
		var lg storage.LaborGroup
		if err := rows.Scan(&lg.LaborGroupID, &lg.Description); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: ошибка сканирования группы: %w", op, err)
		}
		snap.LaborGroups = append(snap.LaborGroups, lg)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT slg.StationID, slg.LaborGroupID FROM stationlaborgroups slg`)
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка выборки привязок станций: %w", op, err)
	}
	for rows.Next() {
		var link storage.StationLaborGroupLink
		if err := rows.Scan(&link.StationID, &link.LaborGroupID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: ошибка сканирования привязки: %w", op, err)
		}
		snap.StationLaborGroups = append(snap.StationLaborGroups, link)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return snap, nil
}

func (s *Storage) fetchSequences(ctx context.Context, snap *storage.HierarchySnapshot, prodIDs []int64) error {
	in, args := inClause(prodIDs)
	stmt := `
		SELECT pcs.SequenceID, pcs.ProductionControlID,
		       COALESCE(pcs.Description, ''), COALESCE(pcs.LotNumber, '')
		FROM productioncontrolsequences pcs
		WHERE pcs.ProductionControlID IN ` + in

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("ошибка выборки секвенций: %w", err)
	}
	for rows.Next() {
		var seq storage.Sequence
		if err := rows.Scan(&seq.SequenceID, &seq.ProductionControlID, &seq.Description, &seq.LotNumber); err != nil {
			rows.Close()
			return fmt.Errorf("ошибка сканирования секвенции: %w", err)
		}
		snap.Sequences = append(snap.Sequences, seq)
	}
	return closeRows(rows)
}

func (s *Storage) fetchItems(ctx context.Context, snap *storage.HierarchySnapshot, prodIDs []int64) error {
	in, args := inClause(prodIDs)
	stmt := `
		SELECT pci.ProductionControlItemID, pci.ProductionControlID, pci.SequenceID,
		       COALESCE(pci.MainMark, ''), COALESCE(pci.PieceMark, ''),
		       COALESCE(pci.Quantity, 0), COALESCE(pci.Weight, 0)
		FROM productioncontrolitems pci
		WHERE pci.ProductionControlID IN ` + in

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("ошибка выборки изделий: %w", err)
	}
	for rows.Next() {
		var (
			it         storage.Item
			sequenceID sql.NullInt64
		)
		if err := rows.Scan(&it.ProductionControlItemID, &it.ProductionControlID, &sequenceID, &it.MainMark, &it.PieceMark, &it.Quantity, &it.Weight); err != nil {
			rows.Close()
			return fmt.Errorf("ошибка сканирования изделия: %w", err)
		}
		it.SequenceID = nullInt64Ptr(sequenceID)
		snap.Items = append(snap.Items, it)
	}
	return closeRows(rows)
}

// FetchJobList — список заказов для фильтра на фронтенде.
func (s *Storage) FetchJobList(ctx context.Context) ([]storage.JobListEntry, error) {
	const op = "storage.mysql.FetchJobList"

	stmt := `
		SELECT p.ProjectID, p.JobNumber, COALESCE(p.JobDescription, ''),
		       pcj.EstimateID, pcj.TotalManHours
		FROM projects p
		LEFT JOIN productioncontroljobs pcj ON pcj.ProjectID = p.ProjectID
		ORDER BY p.JobNumber`

	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка выборки списка заказов: %w", op, err)
	}
	defer rows.Close()

	var jobs []storage.JobListEntry
	for rows.Next() {
		var (
			j          storage.JobListEntry
			estimateID sql.NullInt64
			manHours   sql.NullFloat64
		)
		if err := rows.Scan(&j.ProjectID, &j.JobNumber, &j.Description, &estimateID, &manHours); err != nil {
			return nil, fmt.Errorf("%s: ошибка сканирования: %w", op, err)
		}
		j.HasEstimate = estimateID.Valid
		j.EstimatedHours = nullFloat64Ptr(manHours)
		jobs = append(jobs, j)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: ошибка итерации: %w", op, err)
	}

	return jobs, nil
}

// closeRows закрывает курсор и возвращает ошибку итерации, если была.
func closeRows(rows *sql.Rows) error {
	defer rows.Close()
	return rows.Err()
}
