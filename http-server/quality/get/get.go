package get

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	reconcileget "fab-recon/http-server/reconcile/get"
	"fab-recon/internal/service/reconcile"
)

type QualityReporter interface {
	Quality(ctx context.Context, cfg reconcile.Config) (*reconcile.QualityReport, error)
}

// Детализация счётчиков качества данных из сводки отчёта. Ходит по тем же
// фильтрам, что и сам отчёт; доступна только из админки.

func GetAmbiguousSubjects(log *slog.Logger, q QualityReporter) http.HandlerFunc {
	return qualityHandler(log, q, "handlers.quality.get.GetAmbiguousSubjects",
		func(rep *reconcile.QualityReport) interface{} {
			return map[string]interface{}{"ambiguous": rep.Ambiguous}
		})
}

func GetOrphanedRecords(log *slog.Logger, q QualityReporter) http.HandlerFunc {
	return qualityHandler(log, q, "handlers.quality.get.GetOrphanedRecords",
		func(rep *reconcile.QualityReport) interface{} {
			return map[string]interface{}{"orphaned": rep.Orphaned}
		})
}

func GetUnmatchedSequences(log *slog.Logger, q QualityReporter) http.HandlerFunc {
	return qualityHandler(log, q, "handlers.quality.get.GetUnmatchedSequences",
		func(rep *reconcile.QualityReport) interface{} {
			return map[string]interface{}{"unmatched_sequences": rep.UnmatchedSequences}
		})
}

func qualityHandler(log *slog.Logger, q QualityReporter, op string, pick func(*reconcile.QualityReport) interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := reconcileget.ParseConfig(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		rep, err := q.Quality(ctx, cfg)
		if err != nil {
			log.With(slog.String("op", op), slog.String("error", err.Error())).Error("Ошибка получения аномалий данных")
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, pick(rep))
	}
}
