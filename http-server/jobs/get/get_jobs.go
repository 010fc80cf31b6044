package get

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"fab-recon/internal/storage"
)

type JobList interface {
	FetchJobList(ctx context.Context) ([]storage.JobListEntry, error)
}

type ResponseJobs struct {
	Jobs []storage.JobListEntry `json:"jobs"`
}

// GetJobs — список заказов с признаком наличия сметы, для фильтра на фронте.
func GetJobs(log *slog.Logger, result JobList) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.jobs.get.GetJobs"

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		jobs, err := result.FetchJobList(ctx)
		if err != nil {
			log.With(slog.String("op", op), slog.String("error", err.Error())).Error("Ошибка получения списка заказов")
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, ResponseJobs{Jobs: jobs})
	}
}
