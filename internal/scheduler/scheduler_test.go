// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	l, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "scheduler-test")
	require.NoError(t, err)
	s, err := New(l)
	require.NoError(t, err)
	return s
}

func TestCreateRejectsUnregisteredKind(t *testing.T) {
	s := newTestScheduler(t)
	err := s.Create(context.Background(), &Job{Kind: "nonsense", Cron: "* * * * *", Enabled: false})
	require.Error(t, err)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	s := newTestScheduler(t)
	s.RegisterExecutor(JobCustomScript, func(ctx context.Context, p Params) error { return nil })

	job := &Job{ID: "dup", Kind: JobCustomScript, Cron: "* * * * *"}
	require.NoError(t, s.Create(context.Background(), job))
	require.Error(t, s.Create(context.Background(), &Job{ID: "dup", Kind: JobCustomScript, Cron: "* * * * *"}))
}

func TestRunNowDispatchesAndRecordsHistory(t *testing.T) {
	s := newTestScheduler(t)

	done := make(chan struct{})
	s.RegisterExecutor(JobHealthCheck, func(ctx context.Context, p Params) error {
		close(done)
		return nil
	})

	job := &Job{ID: "hc1", Kind: JobHealthCheck, Cron: "@every 1h", Enabled: false}
	require.NoError(t, s.Create(context.Background(), job))

	runID, err := s.RunNow(context.Background(), "hc1")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("executor never ran")
	}

	require.Eventually(t, func() bool {
		hist, err := s.History("hc1")
		return err == nil && len(hist) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hist, err := s.History("hc1")
	require.NoError(t, err)
	require.Equal(t, JobSucceeded, hist[0].Status)
	require.Equal(t, "run_now", hist[0].Triggered)
}

func TestRunNowConflictsWithInFlightRun(t *testing.T) {
	s := newTestScheduler(t)

	release := make(chan struct{})
	var once sync.Once
	s.RegisterExecutor(JobScrub, func(ctx context.Context, p Params) error {
		once.Do(func() { <-release })
		return nil
	})

	job := &Job{ID: "scrub1", Kind: JobScrub, Cron: "@every 1h"}
	require.NoError(t, s.Create(context.Background(), job))

	_, err := s.RunNow(context.Background(), "scrub1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s.mu.RLock()
		_, running := s.running["scrub1"]
		s.mu.RUnlock()
		return running
	}, time.Second, 5*time.Millisecond)

	_, err = s.RunNow(context.Background(), "scrub1")
	require.Error(t, err)

	close(release)
}

func TestRunNowUnknownJob(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.RunNow(context.Background(), "missing")
	require.Error(t, err)
}

func TestDeleteCancelsRunningJob(t *testing.T) {
	s := newTestScheduler(t)

	started := make(chan struct{})
	s.RegisterExecutor(JobQuotaCheck, func(ctx context.Context, p Params) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	job := &Job{ID: "q1", Kind: JobQuotaCheck, Cron: "@every 1h"}
	require.NoError(t, s.Create(context.Background(), job))

	_, err := s.RunNow(context.Background(), "q1")
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("executor never started")
	}

	require.NoError(t, s.Delete("q1"))
	_, err = s.Get("q1")
	require.Error(t, err)

	// The dispatch goroutine's completion write must still land somewhere
	// queryable, as Cancelled, even though the job itself is tombstoned.
	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		hist := s.history["q1"]
		return len(hist) == 1 && hist[0].Status == JobCancelled
	}, 2*time.Second, 10*time.Millisecond)
}

// TestHistoryShowsSingleRunningRowWhileExecuting guards the property that a
// long-running job shows exactly one Running history row for its whole
// duration, not zero (nothing recorded until completion) and not several
// (one per poll).
func TestHistoryShowsSingleRunningRowWhileExecuting(t *testing.T) {
	s := newTestScheduler(t)

	release := make(chan struct{})
	s.RegisterExecutor(JobReplication, func(ctx context.Context, p Params) error {
		<-release
		return nil
	})

	job := &Job{ID: "repl1", Kind: JobReplication, Cron: "@every 1h"}
	require.NoError(t, s.Create(context.Background(), job))

	_, err := s.RunNow(context.Background(), "repl1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		hist, err := s.History("repl1")
		return err == nil && len(hist) == 1 && hist[0].Status == JobRunning
	}, time.Second, 5*time.Millisecond)

	close(release)

	require.Eventually(t, func() bool {
		hist, err := s.History("repl1")
		return err == nil && len(hist) == 1 && hist[0].Status == JobSucceeded
	}, time.Second, 5*time.Millisecond)
}

func TestEnableDisableToggleGocronRegistration(t *testing.T) {
	s := newTestScheduler(t)
	s.RegisterExecutor(JobSmartCheck, func(ctx context.Context, p Params) error { return nil })

	job := &Job{ID: "smart1", Kind: JobSmartCheck, Cron: "@every 1h", Enabled: false}
	require.NoError(t, s.Create(context.Background(), job))

	s.mu.RLock()
	_, registered := s.gocronID["smart1"]
	s.mu.RUnlock()
	require.False(t, registered)

	require.NoError(t, s.Enable(context.Background(), "smart1"))
	s.mu.RLock()
	_, registered = s.gocronID["smart1"]
	s.mu.RUnlock()
	require.True(t, registered)

	require.NoError(t, s.Disable("smart1"))
	s.mu.RLock()
	_, registered = s.gocronID["smart1"]
	s.mu.RUnlock()
	require.False(t, registered)
}
