package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"fab-recon/internal/storage"
)

// FetchEstimates читает сметы и их строки. Привязка сметы к заказу живёт в
// productioncontroljobs.EstimateID, поэтому фильтр по заказам идёт через неё.
func (s *Storage) FetchEstimates(ctx context.Context, jobIDs []int64) (*storage.EstimateSnapshot, error) {
	const op = "storage.mysql.FetchEstimates"

	snap := &storage.EstimateSnapshot{}

	stmtEstimates := `
		SELECT e.EstimateID, COALESCE(e.JobNumber, ''), e.TotalLaborHours
		FROM estimates e`
	var args []interface{}
	if len(jobIDs) > 0 {
		in, inArgs := inClause(jobIDs)
		stmtEstimates += ` WHERE e.EstimateID IN (
			SELECT pcj.EstimateID FROM productioncontroljobs pcj
			WHERE pcj.ProjectID IN ` + in + ` AND pcj.EstimateID IS NOT NULL)`
		args = inArgs
	}

	rows, err := s.db.QueryContext(ctx, stmtEstimates, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка выборки смет: %w", op, err)
	}
	estimateIDs := make([]int64, 0)
	for rows.Next() {
		var (
			e     storage.Estimate
			total sql.NullFloat64
		)
		if err := rows.Scan(&e.EstimateID, &e.JobNumber, &total); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: ошибка сканирования сметы: %w", op, err)
		}
		e.TotalLaborHours = nullFloat64Ptr(total)
		snap.Estimates = append(snap.Estimates, e)
		estimateIDs = append(estimateIDs, e.EstimateID)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(estimateIDs) == 0 {
		return snap, nil
	}

	in, inArgs := inClause(estimateIDs)
	stmtItems := `
		SELECT ei.EstimateItemID, ei.EstimateID,
		       COALESCE(ei.MainMark, ''), COALESCE(ei.PieceMark, ''),
		       COALESCE(ei.Quantity, 0), ei.LaborHours
		FROM estimateitems ei
		WHERE ei.EstimateID IN ` + in

	rows, err = s.db.QueryContext(ctx, stmtItems, inArgs...)
	if err != nil {
		return nil, fmt.Errorf("%s: ошибка выборки строк смет: %w", op, err)
	}
	for rows.Next() {
		var (
			ei    storage.EstimateItem
			labor sql.NullFloat64
		)
		if err := rows.Scan(&ei.EstimateItemID, &ei.EstimateID, &ei.MainMark, &ei.PieceMark, &ei.Quantity, &labor); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: ошибка сканирования строки сметы: %w", op, err)
		}
		ei.LaborHours = nullFloat64Ptr(labor)
		snap.EstimateItems = append(snap.EstimateItems, ei)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return snap, nil
}
