package reconcile

import (
	"math"
	"sort"

	"fab-recon/internal/storage"
)

type Granularity string

const (
	GranularityJob        Granularity = "job"
	GranularitySequence   Granularity = "sequence"
	GranularityItem       Granularity = "item"
	GranularityLaborGroup Granularity = "laborgroup"
)

type SortBy string

const (
	SortByVariance    SortBy = "variance"
	SortByVariancePct SortBy = "variance_pct"
)

// ReportRow — одна строка сводки на запрошенной гранулярности.
// Указатели nil — absent/undefined, в JSON они уходят как null и фронтенд
// рисует прочерк, а не ноль.
type ReportRow struct {
	Granularity Granularity `json:"granularity"`

	ProjectID  int64  `json:"project_id,omitempty"`
	JobNumber  string `json:"job_number,omitempty"`
	SequenceID int64  `json:"sequence_id,omitempty"`
	LotNumber  string `json:"lot_number,omitempty"`
	MainMark   string `json:"main_mark,omitempty"`
	PieceMark  string `json:"piece_mark,omitempty"`

	LaborGroupID int64  `json:"labor_group_id,omitempty"`
	LaborGroup   string `json:"labor_group,omitempty"`

	ActualHours    float64  `json:"actual_hours"`
	EstimatedHours *float64 `json:"estimated_hours"`
	EstimateMethod string   `json:"estimate_method,omitempty"`
	Variance       *float64 `json:"variance"`
	VariancePct    *float64 `json:"variance_pct"`

	// Контекст уровня изделия.
	EstimatedHoursPerUnit *float64 `json:"estimated_hours_per_unit,omitempty"`
	CompletedQty          int      `json:"completed_qty,omitempty"`
	StationHours          float64  `json:"station_hours,omitempty"`

	// Unmatched: узел назван в записях времени, но в иерархии его нет.
	Unmatched   bool `json:"unmatched,omitempty"`
	Unestimated bool `json:"unestimated,omitempty"`
}

// Summary — итоговый блок прогона.
type Summary struct {
	TotalActualHours          float64 `json:"total_actual_hours"`
	TotalEstimatedExact       float64 `json:"total_estimated_exact"`
	TotalEstimatedApportioned float64 `json:"total_estimated_apportioned"`
	OrphanedTimeRecords       int     `json:"orphaned_time_records"`
	AmbiguousSubjects         int     `json:"ambiguous_subjects"`
	UnestimatedNodes          int     `json:"unestimated_nodes"`
}

type ReportRowSet struct {
	Rows    []ReportRow `json:"rows"`
	Summary Summary     `json:"summary"`
}

type itemProgress struct {
	qty   int
	hours float64
}

// assembleReport сводит факт и оценку в плоские строки запрошенной
// гранулярности, сортирует и собирает итоговый блок.
func assembleReport(cfg Config, idx *HierarchyIndex, act *ActualTotals, est *EstimateTotals, stations []storage.ItemStation) *ReportRowSet {
	var rows []ReportRow
	switch cfg.Granularity {
	case GranularitySequence:
		rows = sequenceRows(idx, act, est)
	case GranularityItem:
		rows = itemRows(idx, act, est, stations)
	case GranularityLaborGroup:
		rows = laborGroupRows(idx, act)
	default:
		rows = jobRows(idx, act, est)
	}

	unestimated := 0
	for i := range rows {
		if rows[i].EstimatedHours == nil {
			rows[i].Unestimated = true
			unestimated++
		}
	}

	sortRows(rows, cfg.SortBy)

	if !cfg.IncludeUnestimated {
		kept := rows[:0]
		for _, row := range rows {
			if !row.Unestimated {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	return &ReportRowSet{
		Rows: rows,
		Summary: Summary{
			TotalActualHours:          act.Total,
			TotalEstimatedExact:       est.ExactTotal,
			TotalEstimatedApportioned: est.ApportionedTotal,
			OrphanedTimeRecords:       len(act.Orphaned),
			AmbiguousSubjects:         len(act.Ambiguous),
			UnestimatedNodes:          unestimated,
		},
	}
}

func jobRows(idx *HierarchyIndex, act *ActualTotals, est *EstimateTotals) []ReportRow {
	keys := make(map[int64]struct{})
	for id := range act.Jobs {
		keys[id] = struct{}{}
	}
	for id := range est.Jobs {
		keys[id] = struct{}{}
	}

	rows := make([]ReportRow, 0, len(keys))
	for projectID := range keys {
		estPtr, method := estimatePtr(estLookupJob(est, projectID))
		v := computeVariance(act.Jobs[projectID], estPtr, method)

		row := ReportRow{
			Granularity:    GranularityJob,
			ProjectID:      projectID,
			ActualHours:    v.Actual,
			EstimatedHours: v.Estimated,
			EstimateMethod: string(v.Method),
			Variance:       v.Variance,
			VariancePct:    v.VariancePct,
		}
		if j, ok := idx.Job(projectID); ok {
			row.JobNumber = j.JobNumber
		}
		rows = append(rows, row)
	}
	return rows
}

func sequenceRows(idx *HierarchyIndex, act *ActualTotals, est *EstimateTotals) []ReportRow {
	keys := make(map[SeqKey]struct{})
	for k := range act.Sequences {
		keys[k] = struct{}{}
	}
	for k := range est.Sequences {
		keys[k] = struct{}{}
	}

	rows := make([]ReportRow, 0, len(keys))
	for key := range keys {
		estVal, ok := est.Sequences[key]
		estPtr, method := estimatePtr(estVal, ok)
		v := computeVariance(act.Sequences[key], estPtr, method)

		row := ReportRow{
			Granularity:    GranularitySequence,
			ProjectID:      key.ProjectID,
			SequenceID:     key.SequenceID,
			ActualHours:    v.Actual,
			EstimatedHours: v.Estimated,
			EstimateMethod: string(v.Method),
			Variance:       v.Variance,
			VariancePct:    v.VariancePct,
		}
		if j, ok := idx.Job(key.ProjectID); ok {
			row.JobNumber = j.JobNumber
		}
		if key.SequenceID == 0 {
			// Синтетическое ведро: лоты, не найденные в иерархии заказа.
			row.LotNumber = "(unmatched)"
			row.Unmatched = true
		} else if seq, ok := idx.sequences[key.SequenceID]; ok {
			row.LotNumber = seq.LotNumber
			if row.LotNumber == "" {
				row.LotNumber = seq.Description
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func itemRows(idx *HierarchyIndex, act *ActualTotals, est *EstimateTotals, stations []storage.ItemStation) []ReportRow {
	progress := itemProgressIndex(idx, stations)

	keys := make(map[ItemKey]struct{})
	for k := range act.Items {
		keys[k] = struct{}{}
	}
	for k := range est.Items {
		keys[k] = struct{}{}
	}

	rows := make([]ReportRow, 0, len(keys))
	for key := range keys {
		estVal, ok := est.Items[key]
		estPtr, method := estimatePtr(estVal, ok)
		v := computeVariance(act.Items[key], estPtr, method)

		row := ReportRow{
			Granularity:    GranularityItem,
			ProjectID:      key.ProjectID,
			MainMark:       key.MainMark,
			PieceMark:      key.PieceMark,
			ActualHours:    v.Actual,
			EstimatedHours: v.Estimated,
			EstimateMethod: string(v.Method),
			Variance:       v.Variance,
			VariancePct:    v.VariancePct,
		}
		// Ключ нормализован для склейки; наружу показываем марки изделия
		// в исходном написании.
		if it, ok := idx.LookupItem(key.ProjectID, key.MainMark, key.PieceMark); ok {
			row.MainMark = it.MainMark
			row.PieceMark = it.PieceMark
		}
		if j, ok := idx.Job(key.ProjectID); ok {
			row.JobNumber = j.JobNumber
		}
		if _, unmatched := act.UnmatchedItemKeys[key]; unmatched {
			row.Unmatched = true
		}
		if perUnit, ok := est.PerUnit[key]; ok {
			row.EstimatedHoursPerUnit = perUnit
		}
		if p, ok := progress[key]; ok {
			row.CompletedQty = p.qty
			row.StationHours = p.hours
		}
		rows = append(rows, row)
	}
	return rows
}

func laborGroupRows(idx *HierarchyIndex, act *ActualTotals) []ReportRow {
	rows := make([]ReportRow, 0, len(act.LaborGroups))
	for id, hours := range act.LaborGroups {
		row := ReportRow{
			Granularity:  GranularityLaborGroup,
			LaborGroupID: id,
			ActualHours:  hours,
		}
		if lg, ok := idx.laborGroups[id]; ok {
			row.LaborGroup = lg.Description
		} else {
			row.LaborGroup = "(unclassified)"
		}
		rows = append(rows, row)
	}
	return rows
}

// itemProgressIndex сводит отметки станций в контекст изделия: сколько штук
// прошло станции и сколько станционных часов накоплено. В ActualHours эти
// часы не входят — это справочные колонки.
func itemProgressIndex(idx *HierarchyIndex, stations []storage.ItemStation) map[ItemKey]itemProgress {
	out := make(map[ItemKey]itemProgress)
	for _, st := range stations {
		projectID, ok := idx.projectByProd[st.ProductionControlID]
		if !ok {
			continue
		}
		key := ItemKey{ProjectID: projectID, MarkKey: markKeyOf(st.MainMark, st.PieceMark)}
		p := out[key]
		p.qty += st.Quantity
		p.hours += st.Hours
		out[key] = p
	}
	return out
}

func estLookupJob(est *EstimateTotals, projectID int64) (EstimateValue, bool) {
	v, ok := est.Jobs[projectID]
	return v, ok
}

// sortRows: оценённые строки ранжируются по убыванию |Variance| либо
// |VariancePct|; неоценённые идут отдельной категорией в хвосте, по убыванию
// факта. Хвост сравнений полностью детерминирован — повторный прогон по тому
// же снимку даёт байт-в-байт тот же порядок.
func sortRows(rows []ReportRow, sortBy SortBy) {
	metric := func(r ReportRow) (float64, bool) {
		if sortBy == SortByVariancePct {
			if r.VariancePct == nil {
				return 0, false
			}
			return math.Abs(*r.VariancePct), true
		}
		if r.Variance == nil {
			return 0, false
		}
		return math.Abs(*r.Variance), true
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]

		if a.Unestimated != b.Unestimated {
			return !a.Unestimated
		}
		if a.Unestimated {
			if a.ActualHours != b.ActualHours {
				return a.ActualHours > b.ActualHours
			}
			return identityLess(a, b)
		}

		ma, aOK := metric(a)
		mb, bOK := metric(b)
		if aOK != bOK {
			return aOK // undefined-метрика уходит в конец своей категории
		}
		if aOK && ma != mb {
			return ma > mb
		}
		return identityLess(a, b)
	})
}

func identityLess(a, b ReportRow) bool {
	if a.JobNumber != b.JobNumber {
		return a.JobNumber < b.JobNumber
	}
	if a.ProjectID != b.ProjectID {
		return a.ProjectID < b.ProjectID
	}
	if a.SequenceID != b.SequenceID {
		return a.SequenceID < b.SequenceID
	}
	if a.MainMark != b.MainMark {
		return a.MainMark < b.MainMark
	}
	if a.PieceMark != b.PieceMark {
		return a.PieceMark < b.PieceMark
	}
	return a.LaborGroupID < b.LaborGroupID
}
