// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"time"

	"github.com/stratastor/horcrux/internal/command"
	"github.com/stratastor/horcrux/internal/services/domain"
	"github.com/stratastor/horcrux/pkg/errors"
)

// DefaultExecutors returns the stock adapter for every JobKind, shelling
// out through the shared command.CommandExecutor (C1) rather than calling
// into a storage-management package directly, since this build carries no
// ZFS dataset manager — each adapter drives the native zfs/smartctl ABI
// the same way the rest of the control plane drives net/wbinfo/nginx.
func DefaultExecutors(executor *command.CommandExecutor, domainClient *domain.Client) map[JobKind]Executor {
	return map[JobKind]Executor{
		JobSnapshot:         snapshotExecutor(executor),
		JobRetentionCleanup: retentionCleanupExecutor(executor),
		JobReplication:      replicationExecutor(executor),
		JobScrub:            scrubExecutor(executor),
		JobCustomScript:     customScriptExecutor(executor),
		JobHealthCheck:      healthCheckExecutor(domainClient),
		JobQuotaCheck:       quotaCheckExecutor(executor),
		JobSmartCheck:       smartCheckExecutor(executor),
	}
}

// snapshotExecutor creates a snapshot named the same way
// pkg/zfs/autosnapshots names its policy-driven snapshots (see
// snapshotName), then applies the job's retention policy (if any) the way
// createSnapshot calls pruneSnapshots right after a successful create.
func snapshotExecutor(executor *command.CommandExecutor) Executor {
	return func(ctx context.Context, p Params) error {
		if p.Dataset == "" {
			return errors.New(errors.SchedulerInvalidInput, "snapshot job requires a dataset")
		}
		name := p.Dataset + "@" + snapshotName(p.Extra["label"], time.Now())
		if _, err := executor.Execute(ctx, "zfs", "snapshot", name); err != nil {
			return errors.Wrap(err, errors.SchedulerDispatchFailed).WithMetadata("dataset", p.Dataset)
		}

		if p.KeepCount > 0 {
			if _, err := pruneZFSSnapshots(ctx, executor, p.Dataset, p.KeepCount, 0); err != nil {
				return errors.Wrap(err, errors.SchedulerDispatchFailed).
					WithMetadata("dataset", p.Dataset).WithMetadata("stage", "post_snapshot_prune")
			}
		}
		return nil
	}
}

// retentionCleanupExecutor prunes a dataset's snapshots by count and/or age,
// adapted from pkg/zfs/autosnapshots.Manager.pruneSnapshots (see
// pruneZFSSnapshots).
func retentionCleanupExecutor(executor *command.CommandExecutor) Executor {
	return func(ctx context.Context, p Params) error {
		if p.Dataset == "" {
			return errors.New(errors.SchedulerInvalidInput, "retention cleanup requires a dataset")
		}
		keep := p.KeepCount
		if keep <= 0 {
			keep = 1
		}

		var maxAge time.Duration
		if raw := p.Extra["olderThan"]; raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return errors.New(errors.SchedulerInvalidInput, "olderThan is not a valid duration").
					WithMetadata("value", raw)
			}
			maxAge = d
		}

		if _, err := pruneZFSSnapshots(ctx, executor, p.Dataset, keep, maxAge); err != nil {
			return errors.Wrap(err, errors.SchedulerDispatchFailed).WithMetadata("dataset", p.Dataset)
		}
		return nil
	}
}

// replicationExecutor sends the latest snapshot of p.Dataset to p.Target,
// incrementally from the newest snapshot both sides already share when one
// exists. Adapted from pkg/zfs/autotransfers.Manager.executeTransferForPolicy
// (see mostRecentCommonSnapshot, sendReceive); the teacher version also
// tunnels the receive side over SSH to a remote dataset manager, which
// horcrux has no equivalent of, so both ends of the pipe run on this host.
func replicationExecutor(executor *command.CommandExecutor) Executor {
	return func(ctx context.Context, p Params) error {
		if p.Dataset == "" || p.Target == "" {
			return errors.New(errors.SchedulerInvalidInput, "replication job requires dataset and target")
		}

		snaps, err := listZFSSnapshots(ctx, executor, p.Dataset)
		if err != nil {
			return errors.Wrap(err, errors.SchedulerDispatchFailed).WithMetadata("dataset", p.Dataset)
		}
		if len(snaps) == 0 {
			return errors.New(errors.SchedulerDispatchFailed, "dataset has no snapshots to replicate").
				WithMetadata("dataset", p.Dataset)
		}
		latest := snaps[len(snaps)-1].full

		common, err := mostRecentCommonSnapshot(ctx, executor, p.Dataset, p.Target)
		if err != nil {
			return errors.Wrap(err, errors.SchedulerDispatchFailed).
				WithMetadata("dataset", p.Dataset).WithMetadata("target", p.Target)
		}

		var fromSnapshot string
		if common != "" {
			if common == snaps[len(snaps)-1].short {
				return nil // target already has the latest snapshot
			}
			fromSnapshot = p.Dataset + "@" + common
		}

		if err := sendReceive(ctx, fromSnapshot, latest, p.Target); err != nil {
			return errors.Wrap(err, errors.SchedulerDispatchFailed).
				WithMetadata("dataset", p.Dataset).WithMetadata("target", p.Target).
				WithMetadata("from_snapshot", fromSnapshot).WithMetadata("to_snapshot", latest)
		}
		return nil
	}
}

func scrubExecutor(executor *command.CommandExecutor) Executor {
	return func(ctx context.Context, p Params) error {
		if p.Pool == "" {
			return errors.New(errors.SchedulerInvalidInput, "scrub job requires a pool")
		}
		if _, err := executor.Execute(ctx, "zpool", "scrub", p.Pool); err != nil {
			return errors.Wrap(err, errors.SchedulerDispatchFailed).WithMetadata("pool", p.Pool)
		}
		return nil
	}
}

func customScriptExecutor(executor *command.CommandExecutor) Executor {
	return func(ctx context.Context, p Params) error {
		if p.Command == "" {
			return errors.New(errors.SchedulerInvalidInput, "custom script job requires a command")
		}
		if _, err := executor.Execute(ctx, p.Command, p.Args...); err != nil {
			return errors.Wrap(err, errors.SchedulerDispatchFailed).WithMetadata("command", p.Command)
		}
		return nil
	}
}

func healthCheckExecutor(domainClient *domain.Client) Executor {
	return func(ctx context.Context, p Params) error {
		joined, detail, err := domainClient.Status(ctx)
		if err != nil {
			return errors.Wrap(err, errors.SchedulerDispatchFailed)
		}
		if !joined {
			return errors.New(errors.SchedulerDispatchFailed, "host is not joined to a domain").
				WithMetadata("detail", detail)
		}
		return nil
	}
}

func quotaCheckExecutor(executor *command.CommandExecutor) Executor {
	return func(ctx context.Context, p Params) error {
		if p.Dataset == "" {
			return errors.New(errors.SchedulerInvalidInput, "quota check requires a dataset")
		}
		if _, err := executor.Execute(ctx, "zfs", "get", "-H", "-o", "value", "used,quota", p.Dataset); err != nil {
			return errors.Wrap(err, errors.SchedulerDispatchFailed).WithMetadata("dataset", p.Dataset)
		}
		return nil
	}
}

func smartCheckExecutor(executor *command.CommandExecutor) Executor {
	return func(ctx context.Context, p Params) error {
		if p.Device == "" {
			return errors.New(errors.SchedulerInvalidInput, "smart check requires a device")
		}
		if _, err := executor.Execute(ctx, "smartctl", "-H", p.Device); err != nil {
			return errors.Wrap(err, errors.SchedulerDispatchFailed).WithMetadata("device", p.Device)
		}
		return nil
	}
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	return lines
}

