// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshotNameIsSortableAndLabeled(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.Equal(t, "horcrux-nightly-20260102-030405", snapshotName("nightly", at))
	require.Equal(t, "horcrux-job-20260102-030405", snapshotName("", at))
}

func TestMostRecentCommonSnapshotPrefersNewest(t *testing.T) {
	source := []zfsSnapshot{
		{short: "a", createdAt: time.Unix(1, 0)},
		{short: "b", createdAt: time.Unix(2, 0)},
		{short: "c", createdAt: time.Unix(3, 0)},
	}
	target := []zfsSnapshot{{short: "a"}, {short: "b"}}

	require.Equal(t, "b", newestCommonSnapshot(source, target))
}
