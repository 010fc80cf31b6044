package storage

// Estimate — верхнеуровневая смета. Часовой итог может отсутствовать.
type Estimate struct {
	EstimateID      int64    `json:"estimate_id"`
	JobNumber       string   `json:"job_number"`
	TotalLaborHours *float64 `json:"total_labor_hours"`
}

// EstimateItem — строка сметы по маркам. LaborHours NULL — строка без
// трудозатрат (только материал).
type EstimateItem struct {
	EstimateItemID int64    `json:"estimate_item_id"`
	EstimateID     int64    `json:"estimate_id"`
	MainMark       string   `json:"main_mark"`
	PieceMark      string   `json:"piece_mark"`
	Quantity       float64  `json:"quantity"`
	LaborHours     *float64 `json:"labor_hours"`
}

type EstimateSnapshot struct {
	Estimates     []Estimate
	EstimateItems []EstimateItem
}
