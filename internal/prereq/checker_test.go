// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package prereq

import (
	"context"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/require"
)

func newTestChecker(t *testing.T) *Checker {
	l, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "prereq-test")
	require.NoError(t, err)
	return NewChecker(l, 500*time.Millisecond)
}

func TestRunRequiresRealmAndDCs(t *testing.T) {
	c := newTestChecker(t)

	_, err := c.Run(context.Background(), "", []string{"dc1.example.com"})
	require.Error(t, err)

	_, err = c.Run(context.Background(), "EXAMPLE.COM", nil)
	require.Error(t, err)
}

func TestRunReportsAllFourChecks(t *testing.T) {
	c := newTestChecker(t)

	report, err := c.Run(context.Background(), "EXAMPLE.COM", []string{"unreachable.invalid"})
	require.NoError(t, err)

	require.Len(t, report.Checks, 4)
	names := map[CheckName]bool{}
	for _, chk := range report.Checks {
		names[chk.Name] = true
	}
	require.True(t, names[CheckDNSSRV])
	require.True(t, names[CheckDCReachable])
	require.True(t, names[CheckClockSkew])
	require.True(t, names[CheckRequiredBins])

	// An unreachable, non-existent DC cannot pass every check.
	require.False(t, report.Ready)
}

func TestCheckRequiredBinariesDetectsMissingBinary(t *testing.T) {
	c := newTestChecker(t)
	RequiredBinaries = append(RequiredBinaries, "definitely-not-a-real-binary-xyz")
	defer func() {
		RequiredBinaries = RequiredBinaries[:len(RequiredBinaries)-1]
	}()

	result, _ := c.checkRequiredBinaries(context.Background())
	require.False(t, result.OK)
	require.Contains(t, result.Error, "definitely-not-a-real-binary-xyz")
}

func TestBuildPrerequisitesMapsBinariesByName(t *testing.T) {
	results := []CheckResult{
		{Name: CheckDNSSRV, OK: true},
		{Name: CheckDCReachable, OK: true},
		{Name: CheckClockSkew, OK: false, Error: "skew too large"},
		{Name: CheckRequiredBins, OK: false, Error: "missing kinit"},
	}
	prereqs := buildPrerequisites(results, []int{389, 445}, map[string]bool{"net": true, "wbinfo": true})

	require.True(t, prereqs.DNSResolves)
	require.True(t, prereqs.DCReachable)
	require.False(t, prereqs.TimeSynced)
	require.Equal(t, []int{389, 445}, prereqs.PortsOpen)
	require.True(t, prereqs.SambaInstalled)
	require.True(t, prereqs.WinbindInstalled)
	require.False(t, prereqs.Krb5Installed)
	require.Len(t, prereqs.Errors, 2)
}
