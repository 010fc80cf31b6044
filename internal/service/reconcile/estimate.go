package reconcile

// ApportionMethod — происхождение оценочных часов узла. Флаг едет вместе со
// значением до самого отчёта: "точная" и "разнесённая" оценки читаются по-разному.
type ApportionMethod string

const (
	MethodExact  ApportionMethod = "exact"  // строка сметы по маркам
	MethodWeight ApportionMethod = "weight" // итог заказа, разнесённый по весу
	MethodCount  ApportionMethod = "count"  // итог заказа, разнесённый поровну
)

// EstimateValue — оценочные часы узла вместе с методом их получения.
type EstimateValue struct {
	Hours  float64
	Method ApportionMethod
}

// EstimateTotals — оценочные часы на тех же гранулярностях, что и фактические.
// Узел без записи в карте — EstimatedHours absent; это не ноль.
type EstimateTotals struct {
	Jobs      map[int64]EstimateValue
	Sequences map[SeqKey]EstimateValue
	Items     map[ItemKey]EstimateValue

	// Оценка на штуку для строк сметы; nil — Quantity == 0, делить нельзя.
	PerUnit map[ItemKey]*float64

	ExactTotal       float64
	ApportionedTotal float64
}

// ResolveEstimates строит оценочное дерево. Точные строки сметы применяются
// к изделиям напрямую; остаток часового итога заказа разносится по
// неоценённым изделиям по доле веса, при нулевом весе — поровну.
func ResolveEstimates(idx *HierarchyIndex) *EstimateTotals {
	out := &EstimateTotals{
		Jobs:      make(map[int64]EstimateValue),
		Sequences: make(map[SeqKey]EstimateValue),
		Items:     make(map[ItemKey]EstimateValue),
		PerUnit:   make(map[ItemKey]*float64),
	}

	for projectID, je := range idx.estimateByJob {
		resolveJobEstimate(idx, projectID, je, out)
	}

	return out
}

// itemGroup — изделия одного заказа с одинаковой нормализованной парой марок,
// схлопнутые в один узел оценки.
type itemGroup struct {
	key        MarkKey
	weight     float64
	sequenceID *int64
}

func resolveJobEstimate(idx *HierarchyIndex, projectID int64, je jobEstimate, out *EstimateTotals) {
	// Дубли марок схлопываются до разнесения: ключ оценки у таких изделий
	// один, поэтому вес суммируется, а в свёртке по заказу узел участвует
	// один раз. Секвенция берётся от первого изделия, как в itemByMark.
	var groups []itemGroup
	groupIdx := make(map[MarkKey]int)
	for _, it := range idx.itemsByJob[projectID] {
		key := markKeyOf(it.MainMark, it.PieceMark)
		if gi, ok := groupIdx[key]; ok {
			groups[gi].weight += it.Weight
			continue
		}
		groupIdx[key] = len(groups)
		groups = append(groups, itemGroup{key: key, weight: it.Weight, sequenceID: it.SequenceID})
	}

	exactSum := 0.0
	var unestimated []int // индексы групп без точной строки сметы

	for i, g := range groups {
		key := ItemKey{ProjectID: projectID, MarkKey: g.key}
		ei, ok := je.items[g.key]
		if !ok || ei.LaborHours == nil {
			unestimated = append(unestimated, i)
			continue
		}
		hours := *ei.LaborHours
		out.Items[key] = EstimateValue{Hours: hours, Method: MethodExact}
		out.ExactTotal += hours
		exactSum += hours

		if ei.Quantity > 0 {
			perUnit := hours / ei.Quantity
			out.PerUnit[key] = &perUnit
		} else {
			out.PerUnit[key] = nil
		}
	}

	// Разнесение остатка итога заказа по неоценённым изделиям.
	if je.totalHours != nil && len(unestimated) > 0 {
		remainder := *je.totalHours - exactSum
		if remainder < 0 {
			remainder = 0
		}

		totalWeight := 0.0
		for _, i := range unestimated {
			totalWeight += groups[i].weight
		}

		for _, i := range unestimated {
			g := groups[i]
			key := ItemKey{ProjectID: projectID, MarkKey: g.key}
			var val EstimateValue
			if totalWeight > 0 {
				val = EstimateValue{Hours: remainder * g.weight / totalWeight, Method: MethodWeight}
			} else {
				// Вес заказа нулевой или неизвестен: поровну на изделие.
				val = EstimateValue{Hours: remainder / float64(len(unestimated)), Method: MethodCount}
			}
			out.Items[key] = val
			out.ApportionedTotal += val.Hours
		}
	}

	// Секвенция — сумма своих изделий; заказ — сумма секвенций и изделий
	// вне секвенций.
	jobVal := EstimateValue{Method: MethodExact}
	jobPresent := false
	for _, g := range groups {
		key := ItemKey{ProjectID: projectID, MarkKey: g.key}
		val, ok := out.Items[key]
		if !ok {
			continue
		}
		jobPresent = true
		jobVal.Hours += val.Hours
		jobVal.Method = coarserMethod(jobVal.Method, val.Method)

		if g.sequenceID != nil {
			skey := SeqKey{ProjectID: projectID, SequenceID: *g.sequenceID}
			seqVal, seen := out.Sequences[skey]
			if !seen {
				seqVal = EstimateValue{Method: MethodExact}
			}
			seqVal.Hours += val.Hours
			seqVal.Method = coarserMethod(seqVal.Method, val.Method)
			out.Sequences[skey] = seqVal
		}
	}

	if jobPresent {
		out.Jobs[projectID] = jobVal
		return
	}
	// Изделий нет вообще — итог заказа остаётся оценкой уровня заказа.
	if je.totalHours != nil {
		out.Jobs[projectID] = EstimateValue{Hours: *je.totalHours, Method: MethodExact}
		out.ExactTotal += *je.totalHours
	}
}

// coarserMethod: при смешанном происхождении узел помечается самым грубым
// из участвующих методов.
func coarserMethod(a, b ApportionMethod) ApportionMethod {
	rank := func(m ApportionMethod) int {
		switch m {
		case MethodCount:
			return 2
		case MethodWeight:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}
