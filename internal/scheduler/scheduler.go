// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/stratastor/logger"

	"github.com/stratastor/horcrux/internal/events"
	"github.com/stratastor/horcrux/pkg/errors"
)

// inflight tracks a single running execution of a job so RunNow and the
// cron dispatcher agree on the single-inflight-per-job guarantee, and so
// a running job can be cancelled.
type inflight struct {
	runID  string
	cancel context.CancelFunc
}

// Scheduler dispatches cron-scheduled and on-demand jobs by kind,
// following pkg/disk/probing.ProbeScheduler's gocron.Scheduler +
// RWMutex-guarded in-flight map shape, generalized from a single probe
// type to a JobKind registry.
type Scheduler struct {
	logger    logger.Logger
	gocron    gocron.Scheduler
	executors map[JobKind]Executor

	mu         sync.RWMutex
	jobs       map[string]*Job
	running    map[string]*inflight         // jobID -> in-flight execution
	history    map[string][]JobHistoryEntry // jobID -> bounded FIFO
	gocronID   map[string]uuid.UUID         // jobID -> registered gocron job id
	tombstoned map[string]bool              // jobID -> deleted but still draining history
}

// New constructs a Scheduler with no jobs registered. Register executors
// via RegisterExecutor before Start.
func New(log logger.Logger) (*Scheduler, error) {
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	g, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, errors.SchedulerDispatchFailed).
			WithMetadata("operation", "create_scheduler")
	}

	return &Scheduler{
		logger:     log,
		gocron:     g,
		executors:  make(map[JobKind]Executor),
		jobs:       make(map[string]*Job),
		running:    make(map[string]*inflight),
		history:    make(map[string][]JobHistoryEntry),
		gocronID:   make(map[string]uuid.UUID),
		tombstoned: make(map[string]bool),
	}, nil
}

// RegisterExecutor binds a JobKind to the function that performs it. Must
// be called before Start for kinds expected to run.
func (s *Scheduler) RegisterExecutor(kind JobKind, fn Executor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executors[kind] = fn
}

// Start registers every enabled job with gocron and begins dispatching.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.RLock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.RUnlock()

	for _, j := range jobs {
		if !j.Enabled {
			continue
		}
		if err := s.registerWithGocron(ctx, j); err != nil {
			s.logger.Error("Failed to register scheduled job", "job_id", j.ID, "err", err)
		}
	}

	s.gocron.Start()
	s.logger.Info("Scheduler started", "jobs", len(jobs))
	return nil
}

// Stop shuts gocron down and waits (with a 30s deadline) for in-flight
// runs to finish, matching ProbeScheduler's Stop.
func (s *Scheduler) Stop(ctx context.Context) error {
	if err := s.gocron.Shutdown(); err != nil {
		s.logger.Error("Error stopping scheduler", "err", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		s.mu.RLock()
		active := len(s.running)
		s.mu.RUnlock()
		if active == 0 {
			break
		}
		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.RLock()
	remaining := len(s.running)
	s.mu.RUnlock()
	if remaining > 0 {
		s.logger.Warn("Scheduler stopped with jobs still running", "count", remaining)
	}
	return nil
}

func (s *Scheduler) registerWithGocron(ctx context.Context, job *Job) error {
	task := func() { s.dispatch(ctx, job.ID, "cron") }

	gj, err := s.gocron.NewJob(
		gocron.CronJob(job.Cron, false),
		gocron.NewTask(task),
		gocron.WithName(job.ID),
	)
	if err != nil {
		return errors.Wrap(err, errors.SchedulerDispatchFailed).
			WithMetadata("job_id", job.ID).WithMetadata("cron", job.Cron)
	}

	s.mu.Lock()
	s.gocronID[job.ID] = gj.ID()
	s.mu.Unlock()
	return nil
}

// Create adds and (if enabled) schedules a new job.
func (s *Scheduler) Create(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if _, ok := s.executors[job.Kind]; !ok {
		s.mu.RLock()
		_, registered := s.executors[job.Kind]
		s.mu.RUnlock()
		if !registered {
			return errors.New(errors.SchedulerUnknownJobKind, string(job.Kind)).
				WithMetadata("job_id", job.ID)
		}
	}

	s.mu.Lock()
	if _, exists := s.jobs[job.ID]; exists {
		s.mu.Unlock()
		return errors.New(errors.SchedulerJobAlreadyExists, "job already exists").
			WithMetadata("job_id", job.ID)
	}
	now := time.Now()
	job.Created, job.Updated = now, now
	s.jobs[job.ID] = job
	s.mu.Unlock()

	if job.Enabled {
		return s.registerWithGocron(ctx, job)
	}
	return nil
}

// Get returns a job by id.
func (s *Scheduler) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.New(errors.SchedulerJobNotFound, "job not found").WithMetadata("job_id", id)
	}
	return j, nil
}

// List returns every registered job.
func (s *Scheduler) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out
}

// Delete tombstones a job: it is unregistered from gocron and hidden from
// Get/List, but its id and history row stay addressable so a run that is
// still finishing (because it was cancelled, not killed) has somewhere to
// record its Cancelled outcome. A second Delete on an already-tombstoned id
// is a no-op returning SchedulerJobNotFound, matching Get/List's view that
// the job no longer exists.
func (s *Scheduler) Delete(id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return errors.New(errors.SchedulerJobNotFound, "job not found").WithMetadata("job_id", id)
	}

	if inf, running := s.running[id]; running {
		inf.cancel()
	}

	if gID, registered := s.gocronID[id]; registered {
		_ = s.gocron.RemoveJob(gID)
		delete(s.gocronID, id)
	}

	delete(s.jobs, id)
	s.tombstoned[id] = true
	s.mu.Unlock()

	s.logger.Info("Job tombstoned", "job_id", id, "kind", job.Kind)
	return nil
}

// Enable schedules a previously-disabled job.
func (s *Scheduler) Enable(ctx context.Context, id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return errors.New(errors.SchedulerJobNotFound, "job not found").WithMetadata("job_id", id)
	}
	if job.Enabled {
		s.mu.Unlock()
		return nil
	}
	job.Enabled = true
	job.Updated = time.Now()
	s.mu.Unlock()

	return s.registerWithGocron(ctx, job)
}

// Disable unregisters a job from gocron without deleting its record.
func (s *Scheduler) Disable(id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return errors.New(errors.SchedulerJobNotFound, "job not found").WithMetadata("job_id", id)
	}
	job.Enabled = false
	job.Updated = time.Now()

	if gID, registered := s.gocronID[id]; registered {
		_ = s.gocron.RemoveJob(gID)
		delete(s.gocronID, id)
	}
	s.mu.Unlock()

	return nil
}

// RunNow triggers an immediate, out-of-band execution of a job. Returns
// Conflict if the job already has a run in flight.
func (s *Scheduler) RunNow(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	_, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return "", errors.New(errors.SchedulerJobNotFound, "job not found").WithMetadata("job_id", id)
	}

	return s.dispatch(ctx, id, "run_now")
}

// History returns the bounded FIFO of recent runs for a job, most recent
// last.
func (s *Scheduler) History(id string) ([]JobHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.jobs[id]; !ok {
		return nil, errors.New(errors.SchedulerJobNotFound, "job not found").WithMetadata("job_id", id)
	}
	return append([]JobHistoryEntry(nil), s.history[id]...), nil
}

// dispatch runs a job's executor if no run is already in flight for it. A
// Running history row is written before the executor is handed the run, so
// History(id) shows exactly one Running entry for the whole duration of the
// call rather than nothing until it finishes. triggeredBy is "cron" or
// "run_now".
func (s *Scheduler) dispatch(ctx context.Context, jobID, triggeredBy string) (string, error) {
	s.mu.Lock()
	if _, running := s.running[jobID]; running {
		s.mu.Unlock()
		return "", errors.New(errors.SchedulerJobConflict, "job already running").WithMetadata("job_id", jobID)
	}

	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return "", errors.New(errors.SchedulerJobNotFound, "job not found").WithMetadata("job_id", jobID)
	}
	jobName, jobKind := job.Name, string(job.Kind)

	fn, ok := s.executors[job.Kind]
	if !ok {
		s.mu.Unlock()
		return "", errors.New(errors.SchedulerUnknownJobKind, string(job.Kind)).WithMetadata("job_id", jobID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	runID := uuid.NewString()
	s.running[jobID] = &inflight{runID: runID, cancel: cancel}
	params := job.Params

	s.appendHistory(jobID, JobHistoryEntry{
		RunID:     runID,
		JobID:     jobID,
		StartedAt: time.Now(),
		Status:    JobRunning,
		Triggered: triggeredBy,
	})
	s.mu.Unlock()

	go func() {
		err := fn(runCtx, params)

		status := JobSucceeded
		errMsg := ""
		switch {
		case err != nil && runCtx.Err() != nil:
			status = JobCancelled
			errMsg = runCtx.Err().Error()
			s.logger.Warn("Scheduled job cancelled", "job_id", jobID, "run_id", runID)
		case err != nil:
			status = JobFailed
			errMsg = err.Error()
			s.logger.Error("Scheduled job failed", "job_id", jobID, "run_id", runID, "err", err)
		default:
			s.logger.Info("Scheduled job completed", "job_id", jobID, "run_id", runID)
		}

		level := events.LevelInfo
		if status == JobFailed || status == JobCancelled {
			level = events.LevelError
		}
		events.EmitSchedulerJobRun(level, jobID, jobName, jobKind, status == JobSucceeded, errMsg, triggeredBy)

		s.mu.Lock()
		delete(s.running, jobID)
		cancel()
		s.updateHistory(jobID, runID, func(e *JobHistoryEntry) {
			e.EndedAt = time.Now()
			e.Status = status
			e.Error = errMsg
		})
		s.mu.Unlock()
	}()

	return runID, nil
}

// appendHistory adds entry to jobID's FIFO, evicting the oldest on overflow.
// Callers must hold s.mu.
func (s *Scheduler) appendHistory(jobID string, entry JobHistoryEntry) {
	hist := append(s.history[jobID], entry)
	if len(hist) > historyLimit {
		hist = hist[len(hist)-historyLimit:]
	}
	s.history[jobID] = hist
}

// updateHistory mutates the entry matching runID in place rather than
// appending a new one, so a run's Running row becomes its own terminal row
// instead of leaving a stale Running duplicate behind. Callers must hold
// s.mu.
func (s *Scheduler) updateHistory(jobID, runID string, mutate func(*JobHistoryEntry)) {
	hist := s.history[jobID]
	for i := range hist {
		if hist[i].RunID == runID {
			mutate(&hist[i])
			return
		}
	}
}
