package reconcile

import (
	"fab-recon/internal/storage"
)

// MarkKey — нормализованная пара марок изделия в пределах заказа.
type MarkKey struct {
	MainMark  string
	PieceMark string
}

// SeqKey — секвенция в пределах заказа. SequenceID == 0 — синтетическое
// ведро UnmatchedSequence: координата назвала лот, которого в иерархии нет.
type SeqKey struct {
	ProjectID  int64
	SequenceID int64
}

// ItemKey — изделие в пределах заказа, по нормализованным маркам.
type ItemKey struct {
	ProjectID int64
	MarkKey
}

type jobEstimate struct {
	estimateID int64
	totalHours *float64
	items      map[MarkKey]storage.EstimateItem
}

// HierarchyIndex — неизменяемые lookup-структуры прогона: дерево
// Job -> Sequence -> Item, привязка смет и Station -> LaborGroup.
// Строится один раз, дальше только читается — блокировки не нужны.
type HierarchyIndex struct {
	jobs          map[int64]storage.Job
	prodByProject map[int64]storage.ProductionJob
	projectByProd map[int64]int64

	sequencesByJob map[int64][]storage.Sequence
	sequences      map[int64]storage.Sequence
	seqByLot       map[int64]map[string]int64 // projectID -> нормализованный лот -> sequenceID

	itemsByJob map[int64][]storage.Item
	itemByMark map[ItemKey]storage.Item

	laborGroups         map[int64]storage.LaborGroup
	laborGroupByStation map[int64]int64

	estimateByJob map[int64]jobEstimate
}

func BuildHierarchyIndex(h *storage.HierarchySnapshot, e *storage.EstimateSnapshot) *HierarchyIndex {
	idx := &HierarchyIndex{
		jobs:                make(map[int64]storage.Job, len(h.Jobs)),
		prodByProject:       make(map[int64]storage.ProductionJob, len(h.ProductionJobs)),
		projectByProd:       make(map[int64]int64, len(h.ProductionJobs)),
		sequencesByJob:      make(map[int64][]storage.Sequence),
		sequences:           make(map[int64]storage.Sequence, len(h.Sequences)),
		seqByLot:            make(map[int64]map[string]int64),
		itemsByJob:          make(map[int64][]storage.Item),
		itemByMark:          make(map[ItemKey]storage.Item, len(h.Items)),
		laborGroups:         make(map[int64]storage.LaborGroup, len(h.LaborGroups)),
		laborGroupByStation: make(map[int64]int64, len(h.StationLaborGroups)),
		estimateByJob:       make(map[int64]jobEstimate),
	}

	for _, j := range h.Jobs {
		idx.jobs[j.ProjectID] = j
	}
	for _, pj := range h.ProductionJobs {
		idx.prodByProject[pj.ProjectID] = pj
		idx.projectByProd[pj.ProductionControlID] = pj.ProjectID
	}

	for _, seq := range h.Sequences {
		projectID, ok := idx.projectByProd[seq.ProductionControlID]
		if !ok {
			continue
		}
		idx.sequences[seq.SequenceID] = seq
		idx.sequencesByJob[projectID] = append(idx.sequencesByJob[projectID], seq)

		byLot := idx.seqByLot[projectID]
		if byLot == nil {
			byLot = make(map[string]int64)
			idx.seqByLot[projectID] = byLot
		}
		// Индексируем и LotNumber, и Description: время тегируют и тем и другим.
		for _, text := range []string{seq.LotNumber, seq.Description} {
			if n := normalizeFieldText(text); n != "" {
				if _, taken := byLot[n]; !taken {
					byLot[n] = seq.SequenceID
				}
			}
		}
	}

	for _, it := range h.Items {
		projectID, ok := idx.projectByProd[it.ProductionControlID]
		if !ok {
			continue
		}
		idx.itemsByJob[projectID] = append(idx.itemsByJob[projectID], it)
		key := ItemKey{ProjectID: projectID, MarkKey: markKeyOf(it.MainMark, it.PieceMark)}
		if _, taken := idx.itemByMark[key]; !taken {
			idx.itemByMark[key] = it
		}
	}

	for _, lg := range h.LaborGroups {
		idx.laborGroups[lg.LaborGroupID] = lg
	}
	for _, link := range h.StationLaborGroups {
		idx.laborGroupByStation[link.StationID] = link.LaborGroupID
	}

	// Привязка смет: только через productioncontroljobs.EstimateID.
	estimates := make(map[int64]storage.Estimate, len(e.Estimates))
	for _, est := range e.Estimates {
		estimates[est.EstimateID] = est
	}
	itemsByEstimate := make(map[int64][]storage.EstimateItem)
	for _, ei := range e.EstimateItems {
		itemsByEstimate[ei.EstimateID] = append(itemsByEstimate[ei.EstimateID], ei)
	}
	for _, pj := range h.ProductionJobs {
		if pj.EstimateID == nil {
			continue
		}
		je := jobEstimate{
			estimateID: *pj.EstimateID,
			items:      make(map[MarkKey]storage.EstimateItem),
		}
		// Часовой итог заказа: productioncontroljobs.TotalManHours, при его
		// отсутствии — итог самой сметы.
		if pj.TotalManHours != nil {
			je.totalHours = pj.TotalManHours
		} else if est, ok := estimates[*pj.EstimateID]; ok {
			je.totalHours = est.TotalLaborHours
		}
		for _, ei := range itemsByEstimate[*pj.EstimateID] {
			key := markKeyOf(ei.MainMark, ei.PieceMark)
			if _, taken := je.items[key]; !taken {
				je.items[key] = ei
			}
		}
		idx.estimateByJob[pj.ProjectID] = je
	}

	return idx
}

func markKeyOf(mainMark, pieceMark string) MarkKey {
	return MarkKey{
		MainMark:  normalizeFieldText(mainMark),
		PieceMark: normalizeFieldText(pieceMark),
	}
}

// LookupSequence ищет секвенцию заказа по тексту лота из координаты.
// Второй результат false — лот не найден, часы пойдут в ведро UnmatchedSequence.
func (idx *HierarchyIndex) LookupSequence(projectID int64, lotText string) (int64, bool) {
	byLot, ok := idx.seqByLot[projectID]
	if !ok {
		return 0, false
	}
	seqID, ok := byLot[normalizeFieldText(lotText)]
	return seqID, ok
}

func (idx *HierarchyIndex) LookupItem(projectID int64, mainMark, pieceMark string) (storage.Item, bool) {
	it, ok := idx.itemByMark[ItemKey{ProjectID: projectID, MarkKey: markKeyOf(mainMark, pieceMark)}]
	return it, ok
}

// LaborGroupOf возвращает группу станции; 0 — станция не привязана ни к
// одной группе (ведро UnclassifiedLaborGroup).
func (idx *HierarchyIndex) LaborGroupOf(stationID *int64) int64 {
	if stationID == nil {
		return 0
	}
	return idx.laborGroupByStation[*stationID]
}

func (idx *HierarchyIndex) Job(projectID int64) (storage.Job, bool) {
	j, ok := idx.jobs[projectID]
	return j, ok
}

func (idx *HierarchyIndex) Weight(projectID int64) float64 {
	if pj, ok := idx.prodByProject[projectID]; ok && pj.TotalWeight != nil {
		return *pj.TotalWeight
	}
	return 0
}
