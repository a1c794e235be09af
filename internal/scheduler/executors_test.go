// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratastor/horcrux/internal/command"
)

func TestExecutorsValidateParamsBeforeShellingOut(t *testing.T) {
	executor := command.NewCommandExecutor(false)
	ctx := context.Background()

	require.Error(t, snapshotExecutor(executor)(ctx, Params{}))
	require.Error(t, retentionCleanupExecutor(executor)(ctx, Params{}))
	require.Error(t, replicationExecutor(executor)(ctx, Params{Dataset: "tank/data"}))
	require.Error(t, scrubExecutor(executor)(ctx, Params{}))
	require.Error(t, customScriptExecutor(executor)(ctx, Params{}))
	require.Error(t, quotaCheckExecutor(executor)(ctx, Params{}))
	require.Error(t, smartCheckExecutor(executor)(ctx, Params{}))
}

func TestSplitNonEmptyLines(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, splitNonEmptyLines("a\nb\nc\n"))
	require.Equal(t, []string{"a", "b"}, splitNonEmptyLines("a\n\nb"))
	require.Nil(t, splitNonEmptyLines(""))
	require.Nil(t, splitNonEmptyLines("\n\n"))
}
