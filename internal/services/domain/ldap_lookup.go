// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stratastor/horcrux/pkg/errors"
	"github.com/stratastor/logger"
)

// ldapLookup is an optional accelerator for sid_to_name/name_to_sid-style
// queries. wbinfo remains the mandatory, authoritative path for every
// lookup; this client only shortcuts it when an LDAP endpoint is
// configured, since a direct search is often faster than shelling out to
// wbinfo under load. Grounded on pkg/ad's connection-retry idiom
// (withLDAPRetry/isConnectionError), trimmed to read-only lookups.
type ldapLookup struct {
	logger logger.Logger
	url    string
	baseDN string
	bindDN string
	bindPw string

	mu   sync.RWMutex
	conn *ldap.Conn
}

// newLDAPLookup returns nil, nil when no LDAP URL is configured — callers
// treat a nil accelerator as "fall back to wbinfo only".
func newLDAPLookup(log logger.Logger, url, baseDN, bindDN, bindPw string) (*ldapLookup, error) {
	if url == "" {
		return nil, nil
	}

	l := &ldapLookup{
		logger: log,
		url:    url,
		baseDN: baseDN,
		bindDN: bindDN,
		bindPw: bindPw,
	}
	if err := l.reconnect(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *ldapLookup) reconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		l.conn.Close()
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: true}
	conn, err := ldap.DialURL(l.url, ldap.DialWithTLSConfig(tlsConfig))
	if err != nil {
		return errors.Wrap(err, errors.ADConnectFailed)
	}
	if err := conn.Bind(l.bindDN, l.bindPw); err != nil {
		conn.Close()
		return errors.Wrap(err, errors.ADInvalidCredentials)
	}

	l.conn = conn
	return nil
}

func isLDAPConnectionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "connection closed") ||
		strings.Contains(errStr, "Network Error") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "connection reset")
}

// withRetry runs op, reconnecting and retrying (up to three attempts in
// all) while op fails with a transient connection error.
func (l *ldapLookup) withRetry(op func(conn *ldap.Conn) error) error {
	const maxAttempts = 3

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(100*(1<<attempt)) * time.Millisecond)
		}

		l.mu.RLock()
		conn := l.conn
		l.mu.RUnlock()

		if conn == nil {
			if err := l.reconnect(); err != nil {
				return err
			}
			l.mu.RLock()
			conn = l.conn
			l.mu.RUnlock()
		}

		err := op(conn)
		if err == nil {
			return nil
		}
		lastErr = err

		if isLDAPConnectionError(err) {
			if rErr := l.reconnect(); rErr != nil {
				return rErr
			}
			continue
		}
		return err
	}
	return lastErr
}

// SIDToName resolves a Windows SID to its sAMAccountName via an LDAP
// search on objectSid, returning ("", false, nil) on no match so callers
// fall back to wbinfo.
func (l *ldapLookup) SIDToName(sid string) (string, bool, error) {
	var name string
	var found bool

	err := l.withRetry(func(conn *ldap.Conn) error {
		req := ldap.NewSearchRequest(
			l.baseDN,
			ldap.ScopeWholeSubtree,
			ldap.NeverDerefAliases,
			1, 5, false,
			fmt.Sprintf("(objectSid=%s)", ldap.EscapeFilter(sid)),
			[]string{"sAMAccountName"},
			nil,
		)
		sr, err := conn.Search(req)
		if err != nil {
			return err
		}
		if len(sr.Entries) == 0 {
			return nil
		}
		name = sr.Entries[0].GetAttributeValue("sAMAccountName")
		found = name != ""
		return nil
	})

	return name, found, err
}

// NameToSID resolves a sAMAccountName to its objectSid, returning
// ("", false, nil) on no match so callers fall back to wbinfo.
func (l *ldapLookup) NameToSID(name string) (string, bool, error) {
	var sid string
	var found bool

	err := l.withRetry(func(conn *ldap.Conn) error {
		req := ldap.NewSearchRequest(
			l.baseDN,
			ldap.ScopeWholeSubtree,
			ldap.NeverDerefAliases,
			1, 5, false,
			fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(name)),
			[]string{"objectSid"},
			nil,
		)
		sr, err := conn.Search(req)
		if err != nil {
			return err
		}
		if len(sr.Entries) == 0 {
			return nil
		}
		sid = sr.Entries[0].GetAttributeValue("objectSid")
		found = sid != ""
		return nil
	})

	return sid, found, err
}

// Close releases the underlying LDAP connection.
func (l *ldapLookup) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
}
