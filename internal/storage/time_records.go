package storage

import "time"

// TimeRecord — запись рабочего времени. ProjectID и SubjectID могут быть NULL:
// время не всегда привязано к заказу или к конкретному изделию.
type TimeRecord struct {
	TimeRecordID   int64     `json:"time_record_id"`
	ProjectID      *int64    `json:"project_id"`
	StationID      *int64    `json:"station_id"`
	EmployeeUserID *int64    `json:"employee_user_id"`
	StartDate      time.Time `json:"start_date"`
	RegularHours   float64   `json:"regular_hours"`
	OvertimeHours  float64   `json:"overtime_hours"`
	Overtime2Hours float64   `json:"overtime2_hours"`
	SubjectID      *int64    `json:"subject_id"`
}

// ItemStation — отметка о прохождении изделием станции (append-only).
type ItemStation struct {
	ProductionControlID int64      `json:"production_control_id"`
	MainMark            string     `json:"main_mark"`
	PieceMark           string     `json:"piece_mark"`
	SequenceID          *int64     `json:"sequence_id"`
	StationID           *int64     `json:"station_id"`
	Quantity            int        `json:"quantity"`
	DateCompleted       *time.Time `json:"date_completed"`
	Hours               float64    `json:"hours"`
	UserID              *int64     `json:"user_id"`
}

// SubjectFieldMapping — одна пара (вид поля, текст) для субъекта времени.
// FieldKind — числовой код из timerecordsubjectfieldmappings.SubjectFieldID,
// Value — уже разрешённый текст из timerecordsubjectfields.
type SubjectFieldMapping struct {
	SubjectID int64  `json:"subject_id"`
	FieldKind int    `json:"field_kind"`
	Value     string `json:"value"`
}

// TimeRecordFilter — фильтр выборки: применяется в SQL, до агрегации.
type TimeRecordFilter struct {
	From       time.Time
	To         time.Time
	ProjectIDs []int64
}
