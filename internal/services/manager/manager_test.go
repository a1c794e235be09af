// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/require"
)

func setupTestManager(t *testing.T) *ServiceManager {
	l, err := logger.New(logger.Config{LogLevel: "debug"})
	require.NoError(t, err)

	mgr, err := NewServiceManager(l)
	require.NoError(t, err)

	return mgr
}

func TestNewServiceManagerWiresComponents(t *testing.T) {
	mgr := setupTestManager(t)

	require.NotNil(t, mgr.Domain())
	require.NotNil(t, mgr.WebDAV())
}

func TestUnitStatusesCoversDependentDaemons(t *testing.T) {
	mgr := setupTestManager(t)
	ctx := context.Background()

	statuses := mgr.UnitStatuses(ctx)
	for _, unit := range unitNames {
		_, ok := statuses[unit]
		require.Truef(t, ok, "expected a status entry for unit %q", unit)
	}
}

func TestClose(t *testing.T) {
	mgr := setupTestManager(t)
	require.NoError(t, mgr.Close())
}
