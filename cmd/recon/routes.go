package main

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	excelhandler "fab-recon/http-server/generate-report/generate-excel"
	getjobs "fab-recon/http-server/jobs/get"
	getquality "fab-recon/http-server/quality/get"
	getreport "fab-recon/http-server/reconcile/get"
	"fab-recon/internal/config"
	"fab-recon/internal/middleware/auth"
	generate_excel "fab-recon/internal/service/generate-excel"
	"fab-recon/internal/service/reconcile"
	"fab-recon/internal/storage/mysql"
)

func routes(cfg config.Config, log *slog.Logger, storage *mysql.Storage, service *reconcile.Service, genService *generate_excel.GenerateExcelService) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:8081", "http://localhost:5173"}, // фронтенд
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// Отчёт план-факт: строки + сводка
	router.Get("/api/report", getreport.GetReport(log, service))
	router.Get("/api/report/summary", getreport.GetSummary(log, service))

	// Выгрузка того же отчёта в excel
	router.Get("/api/report/excel", excelhandler.GenerateReportExcel(log, genService))

	// Список заказов для фильтра
	router.Get("/api/jobs", getjobs.GetJobs(log, storage))

	// Детализация аномалий данных — только под basic auth
	adminRouter := chi.NewRouter()
	adminRouter.Use(auth.BasicAuth(cfg.AdminLogin, cfg.AdminPass))

	adminRouter.Get("/quality/ambiguous", getquality.GetAmbiguousSubjects(log, service))
	adminRouter.Get("/quality/orphaned", getquality.GetOrphanedRecords(log, service))
	adminRouter.Get("/quality/unmatched", getquality.GetUnmatchedSequences(log, service))

	router.Mount("/api/admin", adminRouter)

	// Статика, vue
	frontendDir := "./frontend-dist"
	if _, err := os.Stat(frontendDir); os.IsNotExist(err) {
		log.Error("Папка фронтенда не найдена", "path", frontendDir)
		os.Exit(1)
	}

	fileServer := http.StripPrefix("/", http.FileServer(http.Dir(frontendDir)))

	router.Handle("/assets/*", fileServer)
	router.Handle("/js/*", fileServer)
	router.Handle("/css/*", fileServer)
	router.Handle("/img/*", fileServer)

	// SPA fallback: любой другой путь -> index.html
	router.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(frontendDir, r.URL.Path)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			http.ServeFile(w, r, path)
			return
		}
		http.ServeFile(w, r, filepath.Join(frontendDir, "index.html"))
	})

	return router
}
