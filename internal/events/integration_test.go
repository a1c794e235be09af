// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) logger.Logger {
	l, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "events-test")
	require.NoError(t, err)
	return l
}

// TestEventBusLocalSink verifies that emitted events land in the local
// JSONL sink after a forced batch flush.
func TestEventBusLocalSink(t *testing.T) {
	l := testLogger(t)
	dir := t.TempDir()
	sinkPath := filepath.Join(dir, "events.jsonl")

	cfg := DefaultEventConfig()
	cfg.BatchSize = 2
	cfg.BatchTimeout = 50 * time.Millisecond

	bus := NewEventBus(sinkPath, cfg, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Start(ctx))

	bus.Emit("test.one", LevelInfo, CategorySystem, "test", nil, map[string]string{"k": "v"})
	bus.Emit("test.two", LevelWarn, CategoryStorage, "test", []byte(`{"a":1}`), nil)

	require.Eventually(t, func() bool {
		info, err := os.Stat(sinkPath)
		return err == nil && info.Size() > 0
	}, 2*time.Second, 20*time.Millisecond, "expected events to be flushed to the sink file")

	require.NoError(t, bus.Shutdown(context.Background()))

	f, err := os.Open(sinkPath)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		lines++
	}
	assert.GreaterOrEqual(t, lines, 2, "expected at least 2 events written to the sink")
}

// TestGlobalEventLifecycle exercises Initialize/Emit/Shutdown through the
// package-level globals used by the rest of the codebase.
func TestGlobalEventLifecycle(t *testing.T) {
	l := testLogger(t)

	ctx := context.Background()
	require.NoError(t, Initialize(ctx, l))
	defer func() {
		_ = Shutdown(context.Background())
	}()

	assert.True(t, IsInitialized())

	EmitSystemEvent("system.test", LevelInfo, map[string]string{"msg": "hello"}, nil)
	EmitDomainJoin(LevelInfo, "EXAMPLE.COM", "EXAMPLE", nil)
	EmitWebDAVShareChange(LevelInfo, "public", "created", nil)
	EmitSchedulerJobRun(LevelInfo, "job-1", "nightly-scrub", "scrub", true, "", "cron")

	stats := GetStats()
	assert.True(t, stats["initialized"].(bool))

	require.NoError(t, Shutdown(ctx))
	assert.False(t, IsInitialized())
}
