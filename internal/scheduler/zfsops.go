// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stratastor/horcrux/internal/command"
	"github.com/stratastor/horcrux/pkg/errors"
)

// snapshotTimeFmt mirrors pkg/zfs/autosnapshots' expandSnapNamePattern default
// layout, trimmed to the one pattern horcrux needs (no user-configurable
// pattern language, since the scheduler only ever drives a fixed JobKind set).
const snapshotTimeFmt = "20060102-150405"

// snapshotName builds a deterministic, sortable snapshot name so
// pruneZFSSnapshots can recover creation order even when 'creation' property
// parsing is unavailable, the same fallback pkg/zfs/autosnapshots relies on
// its name suffix for (listPolicySnapshots matches by name suffix, not only
// by the creation property).
func snapshotName(label string, t time.Time) string {
	if label == "" {
		label = "job"
	}
	return fmt.Sprintf("horcrux-%s-%s", label, t.UTC().Format(snapshotTimeFmt))
}

type zfsSnapshot struct {
	full      string // dataset@snapshot
	short     string // snapshot
	createdAt time.Time
}

// listZFSSnapshots lists a dataset's snapshots oldest-first, adapted from
// pkg/zfs/autosnapshots.Manager.listPolicySnapshots: that version asks a
// dataset.Manager for parsed property values, but horcrux has no ZFS ioctl
// library wired in, so this parses 'zfs list -H -p -o name,creation' output
// directly through the shared process driver instead.
func listZFSSnapshots(ctx context.Context, executor *command.CommandExecutor, dataset string) ([]zfsSnapshot, error) {
	out, err := executor.Execute(ctx, "zfs", "list", "-t", "snapshot", "-H", "-p",
		"-o", "name,creation", "-s", "creation", "-r", dataset)
	if err != nil {
		return nil, errors.Wrap(err, errors.SchedulerDispatchFailed).WithMetadata("dataset", dataset)
	}

	var snaps []zfsSnapshot
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != 2 {
			continue
		}
		name := fields[0]
		if !strings.HasPrefix(name, dataset+"@") {
			continue // recursive listing also returns child datasets' snapshots
		}
		epoch, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			continue
		}
		snaps = append(snaps, zfsSnapshot{
			full:      name,
			short:     strings.TrimPrefix(name, dataset+"@"),
			createdAt: time.Unix(epoch, 0),
		})
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].createdAt.Before(snaps[j].createdAt) })
	return snaps, nil
}

// pruneZFSSnapshots destroys snapshots beyond keep (the most recent keep
// survive) and/or older than maxAge, whichever is configured, adapted from
// pkg/zfs/autosnapshots.Manager.pruneSnapshots's two-rule retention policy.
// maxAge of zero disables age-based pruning.
func pruneZFSSnapshots(ctx context.Context, executor *command.CommandExecutor, dataset string, keep int, maxAge time.Duration) ([]string, error) {
	snaps, err := listZFSSnapshots(ctx, executor, dataset)
	if err != nil {
		return nil, err
	}

	var pruned []string
	for i, snap := range snaps {
		remaining := len(snaps) - i
		shouldDelete := keep > 0 && remaining > keep
		if maxAge > 0 && time.Since(snap.createdAt) > maxAge {
			shouldDelete = true
		}
		if !shouldDelete {
			continue
		}
		if _, err := executor.Execute(ctx, "zfs", "destroy", snap.full); err != nil {
			return pruned, errors.Wrap(err, errors.SchedulerDispatchFailed).WithMetadata("snapshot", snap.full)
		}
		pruned = append(pruned, snap.full)
	}
	return pruned, nil
}

// mostRecentCommonSnapshot returns the newest snapshot short-name present on
// both source and target, or "" if none (the target is empty/unrelated).
// Adapted from pkg/zfs/autotransfers.Manager.findMostRecentCommonSnapshot,
// which additionally matches by ZFS GUID over an SSH-tunneled dataset
// manager; horcrux has no remote dataset abstraction wired in (see
// DESIGN.md), so this compares snapshot short-names on two local
// listings instead of GUIDs.
func mostRecentCommonSnapshot(ctx context.Context, executor *command.CommandExecutor, sourceDataset, targetDataset string) (string, error) {
	source, err := listZFSSnapshots(ctx, executor, sourceDataset)
	if err != nil {
		return "", err
	}
	target, err := listZFSSnapshots(ctx, executor, targetDataset)
	if err != nil {
		// Target dataset not existing yet is the common "first replication"
		// case, not a failure: treat it as "no common snapshot".
		return "", nil
	}
	return newestCommonSnapshot(source, target), nil
}

// newestCommonSnapshot walks source (oldest first) from the end and returns
// the first short-name also present in target, or "" if none is.
func newestCommonSnapshot(source, target []zfsSnapshot) string {
	onTarget := make(map[string]bool, len(target))
	for _, t := range target {
		onTarget[t.short] = true
	}

	for i := len(source) - 1; i >= 0; i-- {
		if onTarget[source[i].short] {
			return source[i].short
		}
	}
	return ""
}

// sendReceive pipes 'zfs send' directly into 'zfs recv -F target' via an
// OS pipe, since command.CommandExecutor (C1) only runs one process at a
// time and has no notion of a pipeline. Adapted from
// pkg/zfs/autotransfers.Manager.executeTransferForPolicy's send/recv
// pairing, minus its SSH-tunnelled remote receive side (not wired in here,
// see DESIGN.md) — both ends of the pipe run on this host.
func sendReceive(ctx context.Context, fromSnapshot, toSnapshot, targetDataset string) error {
	sendArgs := []string{"send"}
	if fromSnapshot != "" {
		sendArgs = append(sendArgs, "-i", fromSnapshot)
	}
	sendArgs = append(sendArgs, toSnapshot)

	sendCmd := exec.CommandContext(ctx, "zfs", sendArgs...)
	recvCmd := exec.CommandContext(ctx, "zfs", "recv", "-F", targetDataset)

	pipe, err := sendCmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, errors.SchedulerDispatchFailed)
	}
	recvCmd.Stdin = pipe

	var recvErr strings.Builder
	recvCmd.Stderr = &recvErr

	if err := recvCmd.Start(); err != nil {
		return errors.Wrap(err, errors.SchedulerDispatchFailed).WithMetadata("stage", "recv_start")
	}
	var sendErr strings.Builder
	sendCmd.Stderr = &sendErr
	if err := sendCmd.Start(); err != nil {
		return errors.Wrap(err, errors.SchedulerDispatchFailed).WithMetadata("stage", "send_start")
	}

	sendWaitErr := sendCmd.Wait()
	recvWaitErr := recvCmd.Wait()

	if sendWaitErr != nil {
		return errors.New(errors.SchedulerDispatchFailed, "zfs send failed").
			WithMetadata("stderr", sendErr.String())
	}
	if recvWaitErr != nil {
		return errors.New(errors.SchedulerDispatchFailed, "zfs recv failed").
			WithMetadata("stderr", recvErr.String())
	}
	return nil
}
