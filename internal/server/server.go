package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/EVOLVR/internal/config"
	"github.com/copyleftdev/EVOLVR/internal/logging"
	"github.com/copyleftdev/EVOLVR/internal/metrics"
	"github.com/copyleftdev/EVOLVR/internal/tuning"
	"github.com/copyleftdev/EVOLVR/internal/tuning/batch"
	"github.com/copyleftdev/EVOLVR/internal/tuning/continuous"
	"github.com/copyleftdev/EVOLVR/internal/tuning/report"
	"github.com/copyleftdev/EVOLVR/internal/tuning/trainers"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// RunRecord tracks one tuning run through its lifecycle. Records are
// thread-safe via the server's registry lock and the engine's own
// synchronized Population.
type RunRecord struct {
	ID          string
	Strategy    string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	Objective   tuning.Objective
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time

	// WindowSize shapes mid-run progress statistics: generation grouping
	// for batch runs, fixed-size completion windows for continuous runs.
	WindowSize int

	population *tuning.Population
	cancel     context.CancelFunc

	Report *report.Report
	Err    string
}

// Server manages tuning runs and exposes endpoints to start, monitor, and
// stop them.
type Server struct {
	cfg       *config.Config
	logger    Logger
	engineLog *zap.Logger

	runs   map[string]*RunRecord
	runsMu sync.RWMutex
}

// NewServer creates a new server instance. engineLog is handed to the
// schedulers, which log through zap.
func NewServer(cfg *config.Config, logger Logger, engineLog *zap.Logger) *Server {
	if engineLog == nil {
		engineLog = zap.NewNop()
	}
	return &Server{
		cfg:       cfg,
		logger:    logger,
		engineLog: engineLog,
		runs:      make(map[string]*RunRecord),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.handleStartRun)
		r.Get("/runs/{id}", s.handleRunStatus)
		r.Get("/runs/{id}/report", s.handleRunReport)
		r.Delete("/runs/{id}", s.handleStopRun)
	})
}

// handleStartRun starts a tuning run from a JSON search-space declaration.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var ss config.SearchSpace
	if err := json.NewDecoder(r.Body).Decode(&ss); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	s.applyDefaults(&ss)

	if err := ss.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	benchmark := trainers.Benchmark(ss.Trainer)
	if benchmark == "" {
		benchmark = trainers.Sphere
	}
	trainer, err := trainers.New(benchmark)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.New().String()
	rec := &RunRecord{
		ID:          id,
		Strategy:    ss.Strategy,
		Status:      "pending",
		Objective:   ss.Objective,
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	rec.cancel = cancel

	runLog := s.engineLog.With(zap.String("run_id", id))
	instrumented := instrumentTrainer(trainer, id)

	switch ss.Strategy {
	case "batch":
		cfg, err := ss.BatchConfig()
		if err != nil {
			cancel()
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		cfg.Logger = runLog
		sched, err := batch.New(cfg)
		if err != nil {
			cancel()
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		rec.population = sched.Population()
		rec.WindowSize = 0 // generation grouping
		s.register(rec, ss.Strategy)
		go s.runBatch(ctx, sched, instrumented, rec)
	case "continuous":
		cfg, err := ss.ContinuousConfig()
		if err != nil {
			cancel()
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		cfg.Logger = runLog
		sched, err := continuous.New(cfg)
		if err != nil {
			cancel()
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		rec.population = sched.Population()
		rec.WindowSize = cfg.Parallelism
		s.register(rec, ss.Strategy)
		go s.runContinuous(ctx, sched, instrumented, rec)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"run_id": id,
		"status": "pending",
	})
}

// handleRunStatus reports run lifecycle state plus live counters.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	s.runsMu.RLock()
	resp := map[string]interface{}{
		"run_id":      rec.ID,
		"strategy":    rec.Strategy,
		"status":      rec.Status,
		"start_time":  rec.StartTime.Format(time.RFC3339),
		"last_update": rec.LastUpdated.Format(time.RFC3339),
		"evaluated":   rec.population.Len(),
	}
	if rec.EndTime != nil {
		resp["end_time"] = rec.EndTime.Format(time.RFC3339)
	}
	if rec.Err != "" {
		resp["error"] = rec.Err
	}
	s.runsMu.RUnlock()

	// Aggregation is pure over a population snapshot, so progress is
	// readable mid-run without disturbing the schedulers.
	if best := bestOf(rec); best != nil {
		resp["best"] = best
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleRunReport returns the full aggregated report, final or mid-run.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	rep := snapshotReport(rec)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
}

// handleStopRun requests that a run issue no further submissions. In-flight
// evaluations are drained, never interrupted.
func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.runsMu.Lock()
	rec, ok := s.runs[id]
	if !ok {
		s.runsMu.Unlock()
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	switch rec.Status {
	case "completed", "failed", "cancelled":
		s.runsMu.Unlock()
		s.respondError(w, http.StatusConflict, fmt.Sprintf("cannot stop run with status: %s", rec.Status))
		return
	}
	rec.Status = "cancelled"
	rec.LastUpdated = time.Now()
	cancel := rec.cancel
	s.runsMu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.logger.Info("Tuning run stop requested", map[string]interface{}{
		"run_id": id,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "stop requested",
	})
}

// Close stops every active run.
func (s *Server) Close() error {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	for _, rec := range s.runs {
		if rec.cancel != nil {
			rec.cancel()
		}
	}
	return nil
}

func (s *Server) register(rec *RunRecord, strategy string) {
	s.runsMu.Lock()
	s.runs[rec.ID] = rec
	s.runsMu.Unlock()

	metrics.RunsStarted.WithLabelValues(strategy).Inc()
	metrics.RunsActive.Inc()
	s.logger.Info("Tuning run started", map[string]interface{}{
		"run_id":   rec.ID,
		"strategy": strategy,
	})
}

func (s *Server) lookup(id string) (*RunRecord, bool) {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()
	rec, ok := s.runs[id]
	return rec, ok
}

func (s *Server) runBatch(ctx context.Context, sched *batch.Scheduler, trainer tuning.Trainer, rec *RunRecord) {
	s.setStatus(rec, "running")
	rep, err := sched.Run(ctx, trainer)
	s.finish(rec, rep, err)
}

func (s *Server) runContinuous(ctx context.Context, sched *continuous.Scheduler, trainer tuning.Trainer, rec *RunRecord) {
	s.setStatus(rec, "running")
	rep, err := sched.Run(ctx, trainer)
	s.finish(rec, rep, err)
}

func (s *Server) setStatus(rec *RunRecord, status string) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	if rec.Status == "cancelled" {
		return
	}
	rec.Status = status
	rec.LastUpdated = time.Now()
}

func (s *Server) finish(rec *RunRecord, rep *report.Report, err error) {
	metrics.RunsActive.Dec()

	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	rec.Report = rep
	now := time.Now()
	rec.EndTime = &now
	rec.LastUpdated = now

	if err != nil {
		if rec.Status != "cancelled" {
			rec.Status = "failed"
		}
		rec.Err = err.Error()
		s.logger.Error("Tuning run failed", map[string]interface{}{
			"run_id": rec.ID,
			"error":  err.Error(),
		})
		return
	}

	if rec.Status != "cancelled" {
		rec.Status = "completed"
	}
	if rep != nil && rep.Best != nil {
		metrics.BestScore.WithLabelValues(rec.ID).Set(rep.Best.Score)
		s.logger.Info("Tuning run completed", map[string]interface{}{
			"run_id":     rec.ID,
			"best_score": rep.Best.Score,
			"evaluated":  len(rep.Results),
		})
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  status,
		"message": msg,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// applyDefaults fills request gaps from service configuration.
func (s *Server) applyDefaults(ss *config.SearchSpace) {
	if ss.PointsPerDimension == 0 {
		ss.PointsPerDimension = s.cfg.Tuning.PointsPerDimension
	}
	if ss.GeneticMixing == 0 {
		ss.GeneticMixing = s.cfg.Tuning.GeneticMixing
	}
	if ss.Seed == 0 {
		ss.Seed = s.cfg.Tuning.Seed
	}
	if ss.Strategy == "batch" && ss.Batch.Parallelism == 0 {
		ss.Batch.Parallelism = s.cfg.Tuning.Parallelism
	}
	if ss.Strategy == "continuous" && ss.Continuous.Parallelism == 0 {
		ss.Continuous.Parallelism = s.cfg.Tuning.Parallelism
	}
}

// instrumentTrainer wraps a trainer with evaluation outcome counters.
func instrumentTrainer(t tuning.Trainer, runID string) tuning.Trainer {
	return tuning.TrainerFunc(func(ctx context.Context, c tuning.Candidate) (tuning.Evaluation, error) {
		ev, err := t.Evaluate(ctx, c)
		if err != nil {
			metrics.Evaluations.WithLabelValues("failed").Inc()
			return ev, err
		}
		metrics.Evaluations.WithLabelValues("succeeded").Inc()
		return ev, nil
	})
}

func snapshotReport(rec *RunRecord) *report.Report {
	s := rec.population.Snapshot()
	if rec.WindowSize > 0 {
		return report.AggregateWindows(s, rec.WindowSize, rec.Objective)
	}
	return report.Aggregate(s, rec.Objective)
}

func bestOf(rec *RunRecord) *tuning.EvaluationResult {
	return snapshotReport(rec).Best
}
