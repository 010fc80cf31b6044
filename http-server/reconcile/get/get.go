package get

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"fab-recon/internal/service/reconcile"
)

type Reconciler interface {
	Reconcile(ctx context.Context, cfg reconcile.Config) (*reconcile.ReportRowSet, error)
}

// GetReport — основной отчёт план-факт на запрошенной гранулярности.
func GetReport(log *slog.Logger, rec Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reconcile.get.GetReport"

		cfg, err := ParseConfig(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		report, err := rec.Reconcile(ctx, cfg)
		if err != nil {
			log.With(slog.String("op", op), slog.String("error", err.Error())).Error("Ошибка прогона сверки")
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, report)
	}
}

// GetSummary — только итоговый блок, без строк.
func GetSummary(log *slog.Logger, rec Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reconcile.get.GetSummary"

		cfg, err := ParseConfig(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Итоги не зависят от гранулярности строк, считаем по заказам.
		cfg.Granularity = reconcile.GranularityJob
		cfg.IncludeUnestimated = true

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		report, err := rec.Reconcile(ctx, cfg)
		if err != nil {
			log.With(slog.String("op", op), slog.String("error", err.Error())).Error("Ошибка прогона сверки")
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, report.Summary)
	}
}

// ParseConfig разбирает query-параметры отчёта. По умолчанию: текущий месяц,
// гранулярность job, сортировка по |Variance|, неоценённые строки включены.
func ParseConfig(r *http.Request) (reconcile.Config, error) {
	q := r.URL.Query()

	cfg := reconcile.Config{
		Granularity:        reconcile.GranularityJob,
		SortBy:             reconcile.SortByVariance,
		IncludeUnestimated: true,
	}

	switch q.Get("granularity") {
	case "", string(reconcile.GranularityJob):
	case string(reconcile.GranularitySequence):
		cfg.Granularity = reconcile.GranularitySequence
	case string(reconcile.GranularityItem):
		cfg.Granularity = reconcile.GranularityItem
	case string(reconcile.GranularityLaborGroup):
		cfg.Granularity = reconcile.GranularityLaborGroup
	default:
		return cfg, errBadParam("granularity")
	}

	switch q.Get("sort") {
	case "", string(reconcile.SortByVariance):
	case string(reconcile.SortByVariancePct):
		cfg.SortBy = reconcile.SortByVariancePct
	default:
		return cfg, errBadParam("sort")
	}

	if v := q.Get("include_unestimated"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errBadParam("include_unestimated")
		}
		cfg.IncludeUnestimated = b
	}

	// По умолчанию: с начала текущего месяца по сейчас.
	now := time.Now()
	cfg.From = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	cfg.To = now

	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return cfg, errBadParam("from")
		}
		cfg.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return cfg, errBadParam("to")
		}
		// Правая граница в SQL строгая (StartDate < To), поэтому день из
		// запроса сдвигаем на сутки — иначе он выпал бы из выборки.
		cfg.To = t.AddDate(0, 0, 1)
	}

	for _, raw := range q["job"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, errBadParam("job")
		}
		cfg.JobIDs = append(cfg.JobIDs, id)
	}
	for _, raw := range q["labor_group"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, errBadParam("labor_group")
		}
		cfg.LaborGroupIDs = append(cfg.LaborGroupIDs, id)
	}

	return cfg, nil
}

type errBadParam string

func (e errBadParam) Error() string {
	return "Неверный параметр '" + string(e) + "'"
}
