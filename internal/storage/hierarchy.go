package storage

// Производственная иерархия: Job -> Sequence -> Item.
// Всё читается одним снимком в начале прогона и дальше не меняется.

type Job struct {
	ProjectID   int64  `json:"project_id"`
	JobNumber   string `json:"job_number"`
	Description string `json:"description"`
}

type ProductionJob struct {
	ProductionControlID int64    `json:"production_control_id"`
	ProjectID           int64    `json:"project_id"`
	EstimateID          *int64   `json:"estimate_id"`
	TotalManHours       *float64 `json:"total_man_hours"`
	TotalWeight         *float64 `json:"total_weight"`
}

type Sequence struct {
	SequenceID          int64  `json:"sequence_id"`
	ProductionControlID int64  `json:"production_control_id"`
	Description         string `json:"description"`
	LotNumber           string `json:"lot_number"`
}

type Item struct {
	ProductionControlItemID int64   `json:"production_control_item_id"`
	ProductionControlID     int64   `json:"production_control_id"`
	SequenceID              *int64  `json:"sequence_id"` // NULL — изделие вне секвенции
	MainMark                string  `json:"main_mark"`
	PieceMark               string  `json:"piece_mark"`
	Quantity                int     `json:"quantity"`
	Weight                  float64 `json:"weight"`
}

type Station struct {
	StationID   int64  `json:"station_id"`
	Description string `json:"description"`
}

type LaborGroup struct {
	LaborGroupID int64  `json:"labor_group_id"`
	Description  string `json:"description"`
}

type StationLaborGroupLink struct {
	StationID    int64 `json:"station_id"`
	LaborGroupID int64 `json:"labor_group_id"`
}

// HierarchySnapshot — консистентный снимок иерархии на момент прогона.
type HierarchySnapshot struct {
	Jobs               []Job
	ProductionJobs     []ProductionJob
	Sequences          []Sequence
	Items              []Item
	Stations           []Station
	LaborGroups        []LaborGroup
	StationLaborGroups []StationLaborGroupLink
}

// JobListEntry — строка списка заказов для фронтенда.
type JobListEntry struct {
	ProjectID      int64    `json:"project_id"`
	JobNumber      string   `json:"job_number"`
	Description    string   `json:"description"`
	HasEstimate    bool     `json:"has_estimate"`
	EstimatedHours *float64 `json:"estimated_hours"`
}
