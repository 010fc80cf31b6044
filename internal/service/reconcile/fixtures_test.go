package reconcile

import (
	"time"

	"fab-recon/internal/storage"
)

// Общие фикстуры: заказ J1 со сметой и двумя изделиями (веса 30 и 70),
// заказ J2 без сметы. Секвенция SEQ-1 принадлежит J1.

const (
	fixProjectJ1 = int64(10)
	fixProjectJ2 = int64(20)
	fixProdJ1    = int64(100)
	fixProdJ2    = int64(200)
	fixSeq1      = int64(1001)
	fixStation   = int64(5)
	fixLaborGrp  = int64(7)
)

func fixtureHierarchy() *storage.HierarchySnapshot {
	return &storage.HierarchySnapshot{
		Jobs: []storage.Job{
			{ProjectID: fixProjectJ1, JobNumber: "J1", Description: "Каркас склада"},
			{ProjectID: fixProjectJ2, JobNumber: "J2", Description: "Эстакада"},
		},
		ProductionJobs: []storage.ProductionJob{
			{ProductionControlID: fixProdJ1, ProjectID: fixProjectJ1, EstimateID: i64(900), TotalManHours: f64(100), TotalWeight: f64(100)},
			{ProductionControlID: fixProdJ2, ProjectID: fixProjectJ2},
		},
		Sequences: []storage.Sequence{
			{SequenceID: fixSeq1, ProductionControlID: fixProdJ1, Description: "Секция A", LotNumber: "SEQ-1"},
		},
		Items: []storage.Item{
			{ProductionControlItemID: 1, ProductionControlID: fixProdJ1, SequenceID: i64(fixSeq1), MainMark: "B-1", PieceMark: "p1", Quantity: 2, Weight: 30},
			{ProductionControlItemID: 2, ProductionControlID: fixProdJ1, SequenceID: i64(fixSeq1), MainMark: "B-2", PieceMark: "p2", Quantity: 4, Weight: 70},
		},
		Stations: []storage.Station{
			{StationID: fixStation, Description: "Сварка"},
			{StationID: 6, Description: "Без группы"},
		},
		LaborGroups: []storage.LaborGroup{
			{LaborGroupID: fixLaborGrp, Description: "Сварочные работы"},
		},
		StationLaborGroups: []storage.StationLaborGroupLink{
			{StationID: fixStation, LaborGroupID: fixLaborGrp},
		},
	}
}

func fixtureEstimates() *storage.EstimateSnapshot {
	return &storage.EstimateSnapshot{
		Estimates: []storage.Estimate{
			{EstimateID: 900, JobNumber: "J1", TotalLaborHours: f64(100)},
		},
	}
}

func fixtureIndex() *HierarchyIndex {
	return BuildHierarchyIndex(fixtureHierarchy(), fixtureEstimates())
}

func day(dayOfMonth int) time.Time {
	return time.Date(2026, time.March, dayOfMonth, 8, 0, 0, 0, time.UTC)
}

func record(id int64, projectID *int64, stationID *int64, subjectID *int64, reg, ot, ot2 float64) storage.TimeRecord {
	return storage.TimeRecord{
		TimeRecordID:   id,
		ProjectID:      projectID,
		StationID:      stationID,
		SubjectID:      subjectID,
		StartDate:      day(int(id%27) + 1),
		RegularHours:   reg,
		OvertimeHours:  ot,
		Overtime2Hours: ot2,
	}
}
