// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler drives cron-scheduled and ad-hoc jobs across the NAS
// control plane (ZFS snapshot/retention/replication/scrub, AD health
// checks, custom scripts), following the teacher's
// pkg/disk/probing.ProbeScheduler idiom: a gocron.Scheduler paired with an
// in-flight tracking map, generalized here to dispatch by job kind rather
// than by a single probe type.
package scheduler

import (
	"context"
	"time"
)

// JobKind is the closed set of work this scheduler knows how to dispatch.
type JobKind string

const (
	JobSnapshot         JobKind = "snapshot"
	JobRetentionCleanup JobKind = "retention_cleanup"
	JobReplication      JobKind = "replication"
	JobScrub            JobKind = "scrub"
	JobCustomScript     JobKind = "custom_script"
	JobHealthCheck      JobKind = "health_check"
	JobQuotaCheck       JobKind = "quota_check"
	JobSmartCheck       JobKind = "smart_check"
)

// Params carries job-kind-specific arguments. Only the fields relevant to
// a job's Kind are populated; executors ignore the rest.
type Params struct {
	Dataset     string            `json:"dataset,omitempty"`     // Snapshot/RetentionCleanup/Replication/QuotaCheck
	Pool        string            `json:"pool,omitempty"`        // Scrub
	Target      string            `json:"target,omitempty"`      // Replication destination
	KeepCount   int               `json:"keepCount,omitempty"`   // Snapshot/RetentionCleanup
	Command     string            `json:"command,omitempty"`     // CustomScript
	Args        []string          `json:"args,omitempty"`        // CustomScript
	Device      string            `json:"device,omitempty"`      // SmartCheck
	Extra       map[string]string `json:"extra,omitempty"`
}

// Job is a persisted scheduled (or one-shot) unit of work.
type Job struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Kind     JobKind `json:"kind"`
	Cron     string  `json:"cron"`
	Enabled  bool    `json:"enabled"`
	Params   Params  `json:"params"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// JobStatus is the lifecycle state of one history row.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobHistoryEntry records one run, from dispatch to completion. Scheduler
// writes a Running row the moment a run is handed to a worker, then mutates
// that same row in place to its terminal status — never appends a second
// row for the same RunID — so History(id) always shows at most one Running
// entry per job. Scheduler keeps the last 50 entries per job, evicting the
// oldest on overflow.
type JobHistoryEntry struct {
	RunID     string    `json:"runId"`
	JobID     string    `json:"jobId"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Triggered string    `json:"triggered"` // "cron" | "run_now"
}

const historyLimit = 50

// Executor runs one job invocation to completion or until ctx is cancelled.
type Executor func(ctx context.Context, params Params) error
