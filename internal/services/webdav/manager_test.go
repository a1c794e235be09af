// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package webdav

import (
	"sync"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/require"

	"github.com/stratastor/horcrux/internal/command"
	svcconfig "github.com/stratastor/horcrux/internal/services/config"
	"github.com/stratastor/horcrux/pkg/errors"
)

// newTestManager builds a Manager pointed at a scratch directory tree,
// bypassing NewManager's global config.GetConfig() lookup and nginx/
// htpasswd binary requirements — only the sidecar/validation logic below
// is exercised, never applyShare's nginx -t/-s reload pipeline.
func newTestManager(t *testing.T) *Manager {
	l, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "webdav-test")
	require.NoError(t, err)

	dir := t.TempDir()
	return &Manager{
		logger:            l,
		executor:          command.NewCommandExecutor(false),
		cfgMgr:            svcconfig.NewServiceConfigManager(l),
		configDir:         dir,
		sitesAvailableDir: dir,
		vhostDir:          dir,
		htpasswdDir:       dir,
		shareMus:          make(map[string]*sync.Mutex),
	}
}

func testShare(id string, dir string) *Share {
	return &Share{
		ID:       id,
		Name:     id,
		Path:     dir,
		AuthMode: AuthNone,
	}
}

func TestValidateShareRejectsBadID(t *testing.T) {
	m := newTestManager(t)
	err := m.validateShare(&Share{ID: "bad id!", Path: t.TempDir(), AuthMode: AuthNone})
	require.Error(t, err)
	code, ok := errors.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errors.WebDAVInvalidInput, code)
}

func TestValidateShareRejectsMissingPath(t *testing.T) {
	m := newTestManager(t)
	err := m.validateShare(&Share{ID: "share1", Path: "/does/not/exist", AuthMode: AuthNone})
	require.Error(t, err)
}

func TestValidateShareRequiresExplicitAuthMode(t *testing.T) {
	m := newTestManager(t)
	err := m.validateShare(&Share{ID: "share1", Path: t.TempDir()})
	require.Error(t, err)
}

func TestValidateShareRequiresLDAPConfigForLDAPAuth(t *testing.T) {
	m := newTestManager(t)
	err := m.validateShare(&Share{ID: "share1", Path: t.TempDir(), AuthMode: AuthLDAP})
	require.Error(t, err)
	code, ok := errors.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errors.WebDAVLdapConfigInvalid, code)
}

func TestWriteAndReadSidecarRoundTrips(t *testing.T) {
	m := newTestManager(t)
	s := testShare("share1", t.TempDir())

	require.NoError(t, m.writeSidecar(s))

	got, err := m.readSidecar("share1")
	require.NoError(t, err)
	require.Equal(t, s.ID, got.ID)
	require.Equal(t, s.Path, got.Path)
}

func TestReadSidecarMissingReturnsNotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.readSidecar("nope")
	require.Error(t, err)
	code, ok := errors.GetCode(err)
	require.True(t, ok)
	require.Equal(t, errors.WebDAVShareNotFound, code)
}

func TestListSharesReturnsEveryPersistedSidecar(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.writeSidecar(testShare("share1", t.TempDir())))
	require.NoError(t, m.writeSidecar(testShare("share2", t.TempDir())))

	shares, err := m.ListShares(nil)
	require.NoError(t, err)
	require.Len(t, shares, 2)
}

func TestShareLockIsPerIDAndReused(t *testing.T) {
	m := newTestManager(t)
	a := m.shareLock("share1")
	b := m.shareLock("share1")
	c := m.shareLock("share2")
	require.Same(t, a, b)
	require.NotSame(t, a, c)
}
