package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"fab-recon/internal/storage"
)

// Config — параметры одного прогона сверки.
type Config struct {
	Granularity        Granularity
	From               time.Time
	To                 time.Time
	JobIDs             []int64
	LaborGroupIDs      []int64
	SortBy             SortBy
	IncludeUnestimated bool
}

type ReconcileStorage interface {
	FetchTimeRecords(ctx context.Context, filter storage.TimeRecordFilter) ([]storage.TimeRecord, error)
	FetchItemStations(ctx context.Context, jobIDs []int64) ([]storage.ItemStation, error)
	FetchHierarchy(ctx context.Context, jobIDs []int64) (*storage.HierarchySnapshot, error)
	FetchEstimates(ctx context.Context, jobIDs []int64) (*storage.EstimateSnapshot, error)
	FetchSubjectMappings(ctx context.Context, subjectIDs []int64) ([]storage.SubjectFieldMapping, error)
}

type Service struct {
	storage ReconcileStorage
}

func NewService(storage ReconcileStorage) *Service {
	return &Service{storage: storage}
}

// Reconcile — единственная точка входа движка: один батч-прогон по
// read-only снимку. Любая ошибка выборки фатальна для прогона целиком:
// частичный отчёт молча не отдаём никогда.
func (s *Service) Reconcile(ctx context.Context, cfg Config) (*ReportRowSet, error) {
	const op = "service.reconcile.Reconcile"

	run, err := s.run(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return assembleReport(cfg, run.idx, run.actual, run.estimates, run.stations), nil
}

// AmbiguousSubject — субъект с конфликтующими значениями одного вида поля.
type AmbiguousSubject struct {
	SubjectID int64 `json:"subject_id"`
	Kinds     []int `json:"kinds"`
}

// QualityReport — детализация счётчиков качества данных из сводки.
type QualityReport struct {
	Ambiguous          []AmbiguousSubject    `json:"ambiguous"`
	Orphaned           []OrphanedRecord      `json:"orphaned"`
	UnmatchedSequences []UnmatchedCoordinate `json:"unmatched_sequences"`
}

// Quality возвращает списки аномалий за теми же фильтрами, что и отчёт.
func (s *Service) Quality(ctx context.Context, cfg Config) (*QualityReport, error) {
	const op = "service.reconcile.Quality"

	run, err := s.run(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rep := &QualityReport{Orphaned: run.actual.Orphaned}
	for id, kinds := range run.actual.Ambiguous {
		rep.Ambiguous = append(rep.Ambiguous, AmbiguousSubject{SubjectID: id, Kinds: kinds})
	}
	sort.Slice(rep.Ambiguous, func(i, j int) bool {
		return rep.Ambiguous[i].SubjectID < rep.Ambiguous[j].SubjectID
	})
	for _, u := range run.actual.UnmatchedSeq {
		rep.UnmatchedSequences = append(rep.UnmatchedSequences, *u)
	}
	sort.Slice(rep.UnmatchedSequences, func(i, j int) bool {
		a, b := rep.UnmatchedSequences[i], rep.UnmatchedSequences[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		return a.Text < b.Text
	})
	return rep, nil
}

type runResult struct {
	idx       *HierarchyIndex
	actual    *ActualTotals
	estimates *EstimateTotals
	stations  []storage.ItemStation
}

func (s *Service) run(ctx context.Context, cfg Config) (*runResult, error) {
	var (
		hierarchy *storage.HierarchySnapshot
		estimates *storage.EstimateSnapshot
		records   []storage.TimeRecord
		stations  []storage.ItemStation
	)

	// Снимок читается четырьмя независимыми выборками параллельно.
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hierarchy, err = s.storage.FetchHierarchy(gCtx, cfg.JobIDs)
		if err != nil {
			return fmt.Errorf("hierarchy: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		estimates, err = s.storage.FetchEstimates(gCtx, cfg.JobIDs)
		if err != nil {
			return fmt.Errorf("estimates: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		records, err = s.storage.FetchTimeRecords(gCtx, storage.TimeRecordFilter{
			From:       cfg.From,
			To:         cfg.To,
			ProjectIDs: cfg.JobIDs,
		})
		if err != nil {
			return fmt.Errorf("time records: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		stations, err = s.storage.FetchItemStations(gCtx, cfg.JobIDs)
		if err != nil {
			return fmt.Errorf("item stations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mappings, err := s.storage.FetchSubjectMappings(ctx, distinctSubjectIDs(records))
	if err != nil {
		return nil, fmt.Errorf("subject mappings: %w", err)
	}

	idx := BuildHierarchyIndex(hierarchy, estimates)
	resolver := NewSubjectResolver(mappings)

	// Fork-join: факт и оценка независимы, каждая ветка со своим
	// аккумулятором; встречаются они только в отчёте.
	var (
		actual   *ActualTotals
		estTotal *EstimateTotals
	)
	g2 := new(errgroup.Group)
	g2.Go(func() error {
		actual = AggregateActual(records, idx, resolver, cfg.LaborGroupIDs)
		return nil
	})
	g2.Go(func() error {
		estTotal = ResolveEstimates(idx)
		return nil
	})
	_ = g2.Wait()

	return &runResult{idx: idx, actual: actual, estimates: estTotal, stations: stations}, nil
}

func distinctSubjectIDs(records []storage.TimeRecord) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, r := range records {
		if r.SubjectID == nil {
			continue
		}
		if _, ok := seen[*r.SubjectID]; ok {
			continue
		}
		seen[*r.SubjectID] = struct{}{}
		ids = append(ids, *r.SubjectID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
