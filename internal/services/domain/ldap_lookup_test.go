// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"errors"
	"testing"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/require"
)

func TestNewLDAPLookupNilWithoutURL(t *testing.T) {
	l, err := newLDAPLookup(nil, "", "", "", "")
	require.NoError(t, err)
	require.Nil(t, l)
}

func TestNewLDAPLookupFailsToConnect(t *testing.T) {
	log, err := logger.NewTag(logger.Config{LogLevel: "debug"}, "ldap-test")
	require.NoError(t, err)

	// No LDAP server listens on this port; DialURL must fail rather than
	// hang, proving newLDAPLookup surfaces connection errors instead of
	// silently returning a half-built client.
	_, err = newLDAPLookup(log, "ldap://127.0.0.1:1", "dc=example,dc=com", "", "")
	require.Error(t, err)
}

func TestIsLDAPConnectionErrorMatchesTransientFailures(t *testing.T) {
	cases := []struct {
		err       error
		transient bool
	}{
		{nil, false},
		{errors.New("ldap: connection closed"), true},
		{errors.New("read tcp: i/o timeout"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("LDAP Result Code 49 \"Invalid Credentials\""), false},
		{errors.New("no such object"), false},
	}

	for _, c := range cases {
		require.Equal(t, c.transient, isLDAPConnectionError(c.err), "err=%v", c.err)
	}
}
