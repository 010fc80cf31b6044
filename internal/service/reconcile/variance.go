package reconcile

// VarianceResult — трёхсостоянийная арифметика план-факта.
// Estimated == nil — оценки нет вовсе: Variance тоже nil, узел не участвует
// в ранжировании. VariancePct == nil при нулевой оценке: процент не определён,
// нулём или бесконечностью его подменять нельзя.
type VarianceResult struct {
	Actual      float64
	Estimated   *float64
	Method      ApportionMethod
	Variance    *float64
	VariancePct *float64
}

func computeVariance(actual float64, estimated *float64, method ApportionMethod) VarianceResult {
	res := VarianceResult{Actual: actual, Estimated: estimated, Method: method}
	if estimated == nil {
		return res
	}

	v := actual - *estimated
	res.Variance = &v

	if *estimated != 0 {
		pct := v / *estimated * 100
		res.VariancePct = &pct
	}
	return res
}

func estimatePtr(val EstimateValue, ok bool) (*float64, ApportionMethod) {
	if !ok {
		return nil, ""
	}
	h := val.Hours
	return &h, val.Method
}
