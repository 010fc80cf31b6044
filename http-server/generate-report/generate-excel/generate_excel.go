package generate_excel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	reconcileget "fab-recon/http-server/reconcile/get"
	"fab-recon/internal/service/reconcile"
)

type GenerateExcelHandler interface {
	GenerateExcel(ctx context.Context, cfg reconcile.Config) ([]byte, error)
}

func GenerateReportExcel(log *slog.Logger, gen GenerateExcelHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.report.GenerateReportExcel"

		cfg, err := reconcileget.ParseConfig(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// На Excel даём побольше времени
		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()

		excelBytes, err := gen.GenerateExcel(ctx, cfg)
		if err != nil {
			log.Error("failed to generate excel", "op", op, "err", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		fileName := fmt.Sprintf("Variance_Report_%s.xlsx", time.Now().Format("2006-01-02_150405"))

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
		w.Write(excelBytes)
	}
}
