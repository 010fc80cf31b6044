package generate_excel

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"fab-recon/internal/service/reconcile"
)

type Reconciler interface {
	Reconcile(ctx context.Context, cfg reconcile.Config) (*reconcile.ReportRowSet, error)
}

type GenerateExcelService struct {
	reconciler Reconciler
}

func NewGenerateService(reconciler Reconciler) *GenerateExcelService {
	return &GenerateExcelService{reconciler: reconciler}
}

// GenerateExcel собирает xlsx того же отчёта план-факт, что отдаёт API.
// Absent/undefined рендерим прочерком: оценка "нет" и оценка "ноль" в
// выгрузке обязаны выглядеть по-разному.
func (g *GenerateExcelService) GenerateExcel(ctx context.Context, cfg reconcile.Config) ([]byte, error) {
	report, err := g.reconciler.Reconcile(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("fetch report: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "План-факт"
	f.SetSheetName("Sheet1", sheet)

	// Жирная шапка с заливкой
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})

	headers := headersFor(cfg.Granularity)
	for i, name := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, name)
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(headers), 1)
	f.SetCellStyle(sheet, "A1", lastCol, headerStyle)

	for rowIdx, row := range report.Rows {
		rowNum := rowIdx + 2
		cols := identityCells(cfg.Granularity, row)
		cols = append(cols,
			row.ActualHours,
			floatOrDash(row.EstimatedHours),
			methodLabel(row),
			floatOrDash(row.Variance),
			floatOrDash(row.VariancePct),
		)
		for i, v := range cols {
			f.SetCellValue(sheet, cellName(i+1, rowNum), v)
		}
	}

	// Итоговый блок под таблицей
	sumRow := len(report.Rows) + 3
	s := report.Summary
	f.SetCellValue(sheet, cellName(1, sumRow), "Итого факт, ч")
	f.SetCellValue(sheet, cellName(2, sumRow), s.TotalActualHours)
	f.SetCellValue(sheet, cellName(1, sumRow+1), "Итого оценка (точная), ч")
	f.SetCellValue(sheet, cellName(2, sumRow+1), s.TotalEstimatedExact)
	f.SetCellValue(sheet, cellName(1, sumRow+2), "Итого оценка (разнесённая), ч")
	f.SetCellValue(sheet, cellName(2, sumRow+2), s.TotalEstimatedApportioned)
	f.SetCellValue(sheet, cellName(1, sumRow+3), "Записей без заказа")
	f.SetCellValue(sheet, cellName(2, sumRow+3), s.OrphanedTimeRecords)
	f.SetCellValue(sheet, cellName(1, sumRow+4), "Конфликтных субъектов")
	f.SetCellValue(sheet, cellName(2, sumRow+4), s.AmbiguousSubjects)
	f.SetCellValue(sheet, cellName(1, sumRow+5), "Узлов без оценки")
	f.SetCellValue(sheet, cellName(2, sumRow+5), s.UnestimatedNodes)

	// Закрепляем первую строку
	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
	})
	f.SetColWidth(sheet, "A", "G", 15)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func headersFor(g reconcile.Granularity) []string {
	base := []string{"Факт, ч", "Оценка, ч", "Метод оценки", "Отклонение, ч", "Отклонение, %"}
	switch g {
	case reconcile.GranularitySequence:
		return append([]string{"№ Заказа", "Лот"}, base...)
	case reconcile.GranularityItem:
		return append([]string{"№ Заказа", "Гл. марка", "Марка детали"}, base...)
	case reconcile.GranularityLaborGroup:
		return append([]string{"Группа работ"}, base...)
	default:
		return append([]string{"№ Заказа", "ID проекта"}, base...)
	}
}

func identityCells(g reconcile.Granularity, row reconcile.ReportRow) []interface{} {
	switch g {
	case reconcile.GranularitySequence:
		return []interface{}{row.JobNumber, row.LotNumber}
	case reconcile.GranularityItem:
		return []interface{}{row.JobNumber, row.MainMark, row.PieceMark}
	case reconcile.GranularityLaborGroup:
		return []interface{}{row.LaborGroup}
	default:
		return []interface{}{row.JobNumber, row.ProjectID}
	}
}

func methodLabel(row reconcile.ReportRow) string {
	switch reconcile.ApportionMethod(row.EstimateMethod) {
	case reconcile.MethodExact:
		return "точная"
	case reconcile.MethodWeight:
		return "по весу"
	case reconcile.MethodCount:
		return "по количеству"
	default:
		return "-"
	}
}

func floatOrDash(v *float64) interface{} {
	if v == nil {
		return "-"
	}
	return *v
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
