package reconcile

import (
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"fab-recon/internal/storage"
)

// OrphanedRecord — запись времени без ссылки на заказ: в дерево заказов она
// не попадает, но в итогах по группам и в общем итоге участвует.
type OrphanedRecord struct {
	TimeRecordID int64     `json:"time_record_id"`
	StartDate    time.Time `json:"start_date"`
	Hours        float64   `json:"hours"`
	StationID    *int64    `json:"station_id"`
	SubjectID    *int64    `json:"subject_id"`
}

// UnmatchedCoordinate — текст лота, который не нашёлся среди секвенций заказа.
type UnmatchedCoordinate struct {
	ProjectID int64   `json:"project_id"`
	Text      string  `json:"text"`
	Hours     float64 `json:"hours"`
	Records   int     `json:"records"`
}

type unmatchedKey struct {
	projectID int64
	text      string
}

// ActualTotals — фактические часы по всем узлам иерархии плюс трассировка
// качества данных. Чистая сумма: слияние частичных аккумуляторов от
// параллельных воркеров даёт тот же результат, что последовательный проход.
type ActualTotals struct {
	Jobs        map[int64]float64
	Sequences   map[SeqKey]float64
	Items       map[ItemKey]float64
	LaborGroups map[int64]float64
	Total       float64

	// Часы уровня заказа, не разнесённые ни на одно изделие.
	// Инвариант: Jobs[j] == sum(Items под j) + Unitemized[j].
	Unitemized map[int64]float64

	Orphaned          []OrphanedRecord
	Ambiguous         map[int64][]int // subjectID -> конфликтующие виды полей
	UnmatchedSeq      map[unmatchedKey]*UnmatchedCoordinate
	UnmatchedItemKeys map[ItemKey]struct{}
}

func newActualTotals() *ActualTotals {
	return &ActualTotals{
		Jobs:              make(map[int64]float64),
		Sequences:         make(map[SeqKey]float64),
		Items:             make(map[ItemKey]float64),
		LaborGroups:       make(map[int64]float64),
		Unitemized:        make(map[int64]float64),
		Ambiguous:         make(map[int64][]int),
		UnmatchedSeq:      make(map[unmatchedKey]*UnmatchedCoordinate),
		UnmatchedItemKeys: make(map[ItemKey]struct{}),
	}
}

// RecordHours — фактические часы записи: простая сумма трёх корзин.
// Коэффициенты сверхурочных влияют на деньги, не на часы.
func RecordHours(r storage.TimeRecord) float64 {
	return r.RegularHours + r.OvertimeHours + r.Overtime2Hours
}

// AggregateActual разносит фактические часы по узлам иерархии.
// Записи секционируются по заказу и агрегируются параллельно; частичные
// аккумуляторы сливаются ассоциативным суммированием после g.Wait().
func AggregateActual(records []storage.TimeRecord, idx *HierarchyIndex, res *SubjectResolver, laborGroupFilter []int64) *ActualTotals {
	lgFilter := make(map[int64]struct{}, len(laborGroupFilter))
	for _, id := range laborGroupFilter {
		lgFilter[id] = struct{}{}
	}

	parts := partitionByJob(records)
	partials := make([]*ActualTotals, len(parts))

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range parts {
		g.Go(func() error {
			partials[i] = aggregatePartition(parts[i], idx, res, lgFilter)
			return nil
		})
	}
	_ = g.Wait() // воркеры ошибок не возвращают: агрегация чистая

	total := newActualTotals()
	for _, p := range partials {
		total.merge(p)
	}
	sort.Slice(total.Orphaned, func(i, j int) bool {
		return total.Orphaned[i].TimeRecordID < total.Orphaned[j].TimeRecordID
	})
	return total
}

func partitionByJob(records []storage.TimeRecord) [][]storage.TimeRecord {
	byJob := make(map[int64][]storage.TimeRecord)
	var orphans []storage.TimeRecord
	for _, r := range records {
		if r.ProjectID == nil {
			orphans = append(orphans, r)
			continue
		}
		byJob[*r.ProjectID] = append(byJob[*r.ProjectID], r)
	}

	parts := make([][]storage.TimeRecord, 0, len(byJob)+1)
	for _, part := range byJob {
		parts = append(parts, part)
	}
	if len(orphans) > 0 {
		parts = append(parts, orphans)
	}
	return parts
}

func aggregatePartition(records []storage.TimeRecord, idx *HierarchyIndex, res *SubjectResolver, lgFilter map[int64]struct{}) *ActualTotals {
	acc := newActualTotals()

	for _, r := range records {
		laborGroupID := idx.LaborGroupOf(r.StationID)
		if len(lgFilter) > 0 {
			if _, ok := lgFilter[laborGroupID]; !ok {
				continue
			}
		}

		hours := RecordHours(r)
		acc.Total += hours
		acc.LaborGroups[laborGroupID] += hours

		coord := res.Resolve(r.SubjectID)
		if coord.Ambiguous() && r.SubjectID != nil {
			if _, seen := acc.Ambiguous[*r.SubjectID]; !seen {
				acc.Ambiguous[*r.SubjectID] = coord.AmbiguousKinds
			}
		}

		if r.ProjectID == nil {
			acc.Orphaned = append(acc.Orphaned, OrphanedRecord{
				TimeRecordID: r.TimeRecordID,
				StartDate:    r.StartDate,
				Hours:        hours,
				StationID:    r.StationID,
				SubjectID:    r.SubjectID,
			})
			continue
		}
		projectID := *r.ProjectID
		acc.Jobs[projectID] += hours

		// Уровень секвенции. Конфликтный вид поля пропускаем: запись
		// остаётся на уровне заказа, выбирать значение за данные нельзя.
		if coord.SequenceLot != "" && !coord.kindAmbiguous(FieldKindSequenceLot) {
			if seqID, ok := idx.LookupSequence(projectID, coord.SequenceLot); ok {
				acc.Sequences[SeqKey{ProjectID: projectID, SequenceID: seqID}] += hours
			} else {
				acc.Sequences[SeqKey{ProjectID: projectID}] += hours
				key := unmatchedKey{projectID: projectID, text: normalizeFieldText(coord.SequenceLot)}
				u := acc.UnmatchedSeq[key]
				if u == nil {
					u = &UnmatchedCoordinate{ProjectID: projectID, Text: key.text}
					acc.UnmatchedSeq[key] = u
				}
				u.Hours += hours
				u.Records++
			}
		}

		// Уровень изделия.
		markAmbiguous := coord.kindAmbiguous(FieldKindMainMark) || coord.kindAmbiguous(FieldKindPieceMark)
		if coord.MainMark != "" && coord.PieceMark != "" && !markAmbiguous {
			key := ItemKey{ProjectID: projectID, MarkKey: markKeyOf(coord.MainMark, coord.PieceMark)}
			acc.Items[key] += hours
			if _, ok := idx.LookupItem(projectID, coord.MainMark, coord.PieceMark); !ok {
				// Марка неизвестна иерархии: часы не выбрасываем,
				// строка пойдёт в отчёт как unmatched.
				acc.UnmatchedItemKeys[key] = struct{}{}
			}
		} else {
			acc.Unitemized[projectID] += hours
		}
	}

	return acc
}

func (a *ActualTotals) merge(p *ActualTotals) {
	for k, v := range p.Jobs {
		a.Jobs[k] += v
	}
	for k, v := range p.Sequences {
		a.Sequences[k] += v
	}
	for k, v := range p.Items {
		a.Items[k] += v
	}
	for k, v := range p.LaborGroups {
		a.LaborGroups[k] += v
	}
	for k, v := range p.Unitemized {
		a.Unitemized[k] += v
	}
	a.Total += p.Total
	a.Orphaned = append(a.Orphaned, p.Orphaned...)
	for k, v := range p.Ambiguous {
		if _, seen := a.Ambiguous[k]; !seen {
			a.Ambiguous[k] = v
		}
	}
	for k, v := range p.UnmatchedSeq {
		u := a.UnmatchedSeq[k]
		if u == nil {
			a.UnmatchedSeq[k] = v
			continue
		}
		u.Hours += v.Hours
		u.Records += v.Records
	}
	for k := range p.UnmatchedItemKeys {
		a.UnmatchedItemKeys[k] = struct{}{}
	}
}
