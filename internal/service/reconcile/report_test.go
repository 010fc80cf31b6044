package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fab-recon/internal/storage"
)

func TestComputeVariance(t *testing.T) {
	v := computeVariance(120, f64(100), MethodExact)
	if assert.NotNil(t, v.Variance) {
		assert.InDelta(t, 20, *v.Variance, 1e-9)
	}
	if assert.NotNil(t, v.VariancePct) {
		assert.InDelta(t, 20, *v.VariancePct, 1e-9)
	}
}

// Оценки нет — отклонение не ноль, а null.
func TestComputeVariance_AbsentEstimate(t *testing.T) {
	v := computeVariance(50, nil, "")
	assert.Nil(t, v.Estimated)
	assert.Nil(t, v.Variance)
	assert.Nil(t, v.VariancePct)
}

// Нулевая оценка: абсолютное отклонение есть, процент не определён.
func TestComputeVariance_ZeroEstimate(t *testing.T) {
	v := computeVariance(5, f64(0), MethodExact)
	if assert.NotNil(t, v.Variance) {
		assert.InDelta(t, 5, *v.Variance, 1e-9)
	}
	assert.Nil(t, v.VariancePct)
}

func reportConfig(g Granularity) Config {
	return Config{Granularity: g, SortBy: SortByVariance, IncludeUnestimated: true}
}

func TestAssembleReport_JobRows(t *testing.T) {
	idx := fixtureIndex()
	res := fixtureResolver()
	records := []storage.TimeRecord{
		record(1, i64(fixProjectJ1), i64(fixStation), i64(1), 120, 0, 0),
		record(2, i64(fixProjectJ2), nil, nil, 30, 0, 0),
	}
	act := AggregateActual(records, idx, res, nil)
	est := ResolveEstimates(idx)

	rep := assembleReport(reportConfig(GranularityJob), idx, act, est, nil)

	if !assert.Len(t, rep.Rows, 2) {
		return
	}
	// J1 оценён и идёт первым; J2 без сметы уходит в хвост как unestimated
	j1 := rep.Rows[0]
	assert.Equal(t, "J1", j1.JobNumber)
	assert.InDelta(t, 120, j1.ActualHours, 1e-9)
	if assert.NotNil(t, j1.EstimatedHours) {
		assert.InDelta(t, 100, *j1.EstimatedHours, 1e-9)
	}
	if assert.NotNil(t, j1.Variance) {
		assert.InDelta(t, 20, *j1.Variance, 1e-9)
	}
	assert.False(t, j1.Unestimated)

	j2 := rep.Rows[1]
	assert.Equal(t, "J2", j2.JobNumber)
	assert.True(t, j2.Unestimated)
	assert.Nil(t, j2.EstimatedHours)
	assert.Nil(t, j2.Variance)

	assert.InDelta(t, 150, rep.Summary.TotalActualHours, 1e-9)
	assert.Equal(t, 1, rep.Summary.UnestimatedNodes)
	assert.Equal(t, 0, rep.Summary.OrphanedTimeRecords)
}

func TestAssembleReport_ExcludeUnestimated(t *testing.T) {
	idx := fixtureIndex()
	records := []storage.TimeRecord{
		record(1, i64(fixProjectJ1), nil, nil, 10, 0, 0),
		record(2, i64(fixProjectJ2), nil, nil, 30, 0, 0),
	}
	act := AggregateActual(records, idx, fixtureResolver(), nil)
	est := ResolveEstimates(idx)

	cfg := reportConfig(GranularityJob)
	cfg.IncludeUnestimated = false
	rep := assembleReport(cfg, idx, act, est, nil)

	if assert.Len(t, rep.Rows, 1) {
		assert.Equal(t, "J1", rep.Rows[0].JobNumber)
	}
	// Счётчик в сводке считается до фильтрации
	assert.Equal(t, 1, rep.Summary.UnestimatedNodes)
}

// Ранжирование: оценённые по убыванию |Variance|, неоценённые в хвосте по
// убыванию факта; порядок детерминирован.
func TestSortRows(t *testing.T) {
	rows := []ReportRow{
		{JobNumber: "A", ActualHours: 110, EstimatedHours: f64(100), Variance: f64(10)},
		{JobNumber: "B", ActualHours: 60, EstimatedHours: f64(100), Variance: f64(-40)},
		{JobNumber: "C", ActualHours: 90, Unestimated: true},
		{JobNumber: "D", ActualHours: 5, Unestimated: true},
		{JobNumber: "E", ActualHours: 100, EstimatedHours: f64(100), Variance: f64(0)},
	}
	sortRows(rows, SortByVariance)

	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r.JobNumber
	}
	assert.Equal(t, []string{"B", "A", "E", "C", "D"}, got)
}

// Сортировка по проценту: строка с неопределённым процентом (оценка 0)
// уходит в конец своей категории.
func TestSortRows_VariancePctUndefinedLast(t *testing.T) {
	rows := []ReportRow{
		{JobNumber: "A", EstimatedHours: f64(0), Variance: f64(50)},
		{JobNumber: "B", EstimatedHours: f64(100), Variance: f64(10), VariancePct: f64(10)},
	}
	sortRows(rows, SortByVariancePct)

	assert.Equal(t, "B", rows[0].JobNumber)
	assert.Equal(t, "A", rows[1].JobNumber)
}

func TestAssembleReport_SequenceUnmatchedBucket(t *testing.T) {
	idx := fixtureIndex()
	records := []storage.TimeRecord{
		record(1, i64(fixProjectJ1), nil, i64(2), 40, 0, 0), // SEQ-1
		record(2, i64(fixProjectJ1), nil, i64(3), 7, 0, 0),  // LOT-X, такого лота нет
	}
	act := AggregateActual(records, idx, fixtureResolver(), nil)
	est := ResolveEstimates(idx)

	rep := assembleReport(reportConfig(GranularitySequence), idx, act, est, nil)

	var matched, unmatched *ReportRow
	for i := range rep.Rows {
		if rep.Rows[i].Unmatched {
			unmatched = &rep.Rows[i]
		} else if rep.Rows[i].SequenceID == fixSeq1 {
			matched = &rep.Rows[i]
		}
	}
	if assert.NotNil(t, matched) {
		assert.Equal(t, "SEQ-1", matched.LotNumber)
		assert.InDelta(t, 40, matched.ActualHours, 1e-9)
	}
	if assert.NotNil(t, unmatched) {
		assert.Equal(t, "(unmatched)", unmatched.LotNumber)
		assert.Equal(t, int64(0), unmatched.SequenceID)
		assert.InDelta(t, 7, unmatched.ActualHours, 1e-9)
	}
}

func TestAssembleReport_ItemRowsWithProgress(t *testing.T) {
	idx := fixtureIndex()
	records := []storage.TimeRecord{
		record(1, i64(fixProjectJ1), i64(fixStation), i64(1), 35, 0, 0),
	}
	act := AggregateActual(records, idx, fixtureResolver(), nil)
	est := ResolveEstimates(idx)
	stations := []storage.ItemStation{
		{ProductionControlID: fixProdJ1, MainMark: "B-1", PieceMark: "p1", Quantity: 1, Hours: 3.5},
		{ProductionControlID: fixProdJ1, MainMark: "B-1", PieceMark: "p1", Quantity: 1, Hours: 2.5},
	}

	rep := assembleReport(reportConfig(GranularityItem), idx, act, est, stations)

	var b1 *ReportRow
	for i := range rep.Rows {
		if rep.Rows[i].MainMark == "B-1" {
			b1 = &rep.Rows[i]
		}
	}
	if !assert.NotNil(t, b1) {
		return
	}
	// Марки в строке — в исходном написании иерархии, не нормализованные
	assert.Equal(t, "p1", b1.PieceMark)
	assert.InDelta(t, 35, b1.ActualHours, 1e-9)
	if assert.NotNil(t, b1.EstimatedHours) {
		assert.InDelta(t, 30, *b1.EstimatedHours, 1e-9)
	}
	assert.Equal(t, string(MethodWeight), b1.EstimateMethod)
	assert.Equal(t, 2, b1.CompletedQty)
	// Станционные часы — справочная колонка, в ActualHours не входят
	assert.InDelta(t, 6, b1.StationHours, 1e-9)
}

// Время тегировано другим регистром марок, чем в иерархии: склейка идёт по
// нормализованному ключу, а в строке остаётся написание из иерархии. Марка,
// неизвестная иерархии, показывается как есть из координаты.
func TestAssembleReport_ItemMarkCasing(t *testing.T) {
	idx := fixtureIndex()
	res := NewSubjectResolver([]storage.SubjectFieldMapping{
		{SubjectID: 1, FieldKind: FieldKindMainMark, Value: "b-1"},
		{SubjectID: 1, FieldKind: FieldKindPieceMark, Value: "P1"},
		{SubjectID: 2, FieldKind: FieldKindMainMark, Value: "GHOST"},
		{SubjectID: 2, FieldKind: FieldKindPieceMark, Value: "g1"},
	})
	records := []storage.TimeRecord{
		record(1, i64(fixProjectJ1), nil, i64(1), 5, 0, 0),
		record(2, i64(fixProjectJ1), nil, i64(2), 3, 0, 0),
	}
	act := AggregateActual(records, idx, res, nil)
	est := ResolveEstimates(idx)

	rep := assembleReport(reportConfig(GranularityItem), idx, act, est, nil)

	byMark := make(map[string]ReportRow)
	for _, r := range rep.Rows {
		byMark[r.MainMark] = r
	}
	if assert.Contains(t, byMark, "B-1") {
		assert.Equal(t, "p1", byMark["B-1"].PieceMark)
		assert.InDelta(t, 5, byMark["B-1"].ActualHours, 1e-9)
	}
	if assert.Contains(t, byMark, "ghost") {
		assert.True(t, byMark["ghost"].Unmatched)
	}
}

func TestAssembleReport_LaborGroupRows(t *testing.T) {
	idx := fixtureIndex()
	records := []storage.TimeRecord{
		record(1, i64(fixProjectJ1), i64(fixStation), nil, 12, 0, 0),
		record(2, i64(fixProjectJ1), i64(6), nil, 4, 0, 0),
	}
	act := AggregateActual(records, idx, fixtureResolver(), nil)
	est := ResolveEstimates(idx)

	rep := assembleReport(reportConfig(GranularityLaborGroup), idx, act, est, nil)

	if !assert.Len(t, rep.Rows, 2) {
		return
	}
	byID := make(map[int64]ReportRow)
	for _, r := range rep.Rows {
		byID[r.LaborGroupID] = r
	}
	assert.Equal(t, "Сварочные работы", byID[fixLaborGrp].LaborGroup)
	assert.InDelta(t, 12, byID[fixLaborGrp].ActualHours, 1e-9)
	assert.Equal(t, "(unclassified)", byID[0].LaborGroup)
	assert.InDelta(t, 4, byID[0].ActualHours, 1e-9)
}
