// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/stratastor/horcrux/pkg/errors"
)

// TrustStatus is the structured result of test_trust: the domain secret's
// validity and whether the DC itself answers, checked independently since
// either can fail without the other.
type TrustStatus struct {
	SecretValid bool `json:"secretValid"`
	DCReachable bool `json:"dcReachable"`
}

// PingResult is the structured result of ping_dc.
type PingResult struct {
	Success   bool   `json:"success"`
	LatencyMs int64  `json:"latencyMs"`
	DCName    string `json:"dcName,omitempty"`
}

// ListUsers lists domain users via `wbinfo -u`, one DOMAIN\user per line.
func (c *Client) ListUsers(ctx context.Context) ([]string, error) {
	output, err := c.executor.ExecuteWithCombinedOutput(ctx, "wbinfo", "-u")
	if err != nil {
		return nil, errors.Wrap(err, errors.ADSearchFailed).WithMetadata("op", "list_users")
	}
	return splitNonEmptyLines(string(output)), nil
}

// ListGroups lists domain groups via `wbinfo -g`, one DOMAIN\group per line.
func (c *Client) ListGroups(ctx context.Context) ([]string, error) {
	output, err := c.executor.ExecuteWithCombinedOutput(ctx, "wbinfo", "-g")
	if err != nil {
		return nil, errors.Wrap(err, errors.ADSearchFailed).WithMetadata("op", "list_groups")
	}
	return splitNonEmptyLines(string(output)), nil
}

// GetUserGroups lists the groups a user belongs to via `wbinfo -r`.
func (c *Client) GetUserGroups(ctx context.Context, user string) ([]string, error) {
	output, err := c.executor.ExecuteWithCombinedOutput(ctx, "wbinfo", "-r", user)
	if err != nil {
		return nil, errors.Wrap(err, errors.ADUserNotFound).WithMetadata("user", user)
	}
	return splitNonEmptyLines(string(output)), nil
}

// Authenticate checks user/password against the domain via `wbinfo -a`.
// wbinfo exits non-zero if either the plaintext or challenge/response check
// fails; that is reported here as a plain false, not an error, matching
// testJoin's treatment of a tool's own negative result.
func (c *Client) Authenticate(ctx context.Context, user, password string) (bool, error) {
	_, err := c.executor.ExecuteWithStdin(ctx, password+"\n", "wbinfo", "-a", user+"%"+password)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// SIDToUID resolves a SID to a numeric uid via `wbinfo -S`.
func (c *Client) SIDToUID(ctx context.Context, sid string) (int, error) {
	output, err := c.executor.ExecuteWithCombinedOutput(ctx, "wbinfo", "-S", sid)
	if err != nil {
		return 0, errors.Wrap(err, errors.ADSIDLookupFailed).WithMetadata("sid", sid)
	}
	uid, perr := strconv.Atoi(strings.TrimSpace(string(output)))
	if perr != nil {
		return 0, errors.New(errors.ADSIDLookupFailed, "wbinfo returned a non-numeric uid").
			WithMetadata("sid", sid).WithMetadata("output", string(output))
	}
	return uid, nil
}

// UIDToSID resolves a numeric uid to a SID via `wbinfo -U`.
func (c *Client) UIDToSID(ctx context.Context, uid int) (string, error) {
	output, err := c.executor.ExecuteWithCombinedOutput(ctx, "wbinfo", "-U", strconv.Itoa(uid))
	if err != nil {
		return "", errors.Wrap(err, errors.ADSIDLookupFailed).WithMetadata("uid", strconv.Itoa(uid))
	}
	return strings.TrimSpace(string(output)), nil
}

// TestTrust combines the domain secret's validity (`wbinfo --check-secret`)
// and DC reachability (`wbinfo -p`) into one structured answer, never
// mutating state. A failure in either probe just clears that field; only a
// failure to run wbinfo at all (e.g. missing binary) returns an error.
func (c *Client) TestTrust(ctx context.Context) (*TrustStatus, error) {
	status := &TrustStatus{}

	_, err := c.executor.ExecuteWithCombinedOutput(ctx, "wbinfo", "--check-secret")
	status.SecretValid = err == nil

	_, err = c.executor.ExecuteWithCombinedOutput(ctx, "wbinfo", "-p")
	status.DCReachable = err == nil

	return status, nil
}

// PingDC pings the domain controller's NETLOGON service via `wbinfo -p` and
// reports elapsed wall-clock time as latency, since wbinfo itself does not
// report one.
func (c *Client) PingDC(ctx context.Context) (*PingResult, error) {
	start := time.Now()
	output, err := c.executor.ExecuteWithCombinedOutput(ctx, "wbinfo", "-p")
	elapsed := time.Since(start)

	result := &PingResult{
		Success:   err == nil,
		LatencyMs: elapsed.Milliseconds(),
	}
	result.DCName = extractQuoted(string(output))
	return result, nil
}

// RotateMachinePassword rotates this host's computer-account password via
// `net ads changetrustpw`, the same machinery `netAdsJoin` drives.
func (c *Client) RotateMachinePassword(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.executor.ExecuteWithCombinedOutput(ctx, "net", "ads", "changetrustpw"); err != nil {
		return errors.Wrap(err, errors.ADRotatePasswordFailed)
	}
	c.logger.Info("Rotated machine account password")
	return nil
}

// RegisterDNS registers this host's DNS record with the DC via
// `net ads dns register`, the authoritative mechanism spec.md §4.5 step 5
// calls for — unlike configureLocalResolver, which only points the local
// resolver at the DC and never touches AD-integrated DNS.
func (c *Client) RegisterDNS(ctx context.Context) error {
	if _, err := c.executor.ExecuteWithCombinedOutput(ctx, "net", "ads", "dns", "register"); err != nil {
		return errors.Wrap(err, errors.ADDNSRegisterFailed)
	}
	c.logger.Info("Registered host DNS record with domain controller")
	return nil
}

// UnregisterDNS removes this host's DNS record via `net ads dns unregister`,
// called from Leave so a decommissioned host doesn't leave a stale AD DNS
// entry behind.
func (c *Client) UnregisterDNS(ctx context.Context) error {
	if _, err := c.executor.ExecuteWithCombinedOutput(ctx, "net", "ads", "dns", "unregister"); err != nil {
		return errors.Wrap(err, errors.ADDNSRegisterFailed).WithMetadata("op", "unregister")
	}
	c.logger.Info("Unregistered host DNS record from domain controller")
	return nil
}

// CreateKeytab creates a keytab file at path via `net ads keytab create`.
func (c *Client) CreateKeytab(ctx context.Context, path string) error {
	args := []string{"ads", "keytab", "create"}
	if path != "" {
		args = append(args, "-k", path)
	}
	if _, err := c.executor.ExecuteWithCombinedOutput(ctx, "net", args...); err != nil {
		return errors.Wrap(err, errors.ADKeytabFailed).WithMetadata("op", "create").WithMetadata("path", path)
	}
	return nil
}

// AddKeytabPrincipal adds principal p to the system keytab via
// `net ads keytab add`.
func (c *Client) AddKeytabPrincipal(ctx context.Context, principal string) error {
	if _, err := c.executor.ExecuteWithCombinedOutput(ctx, "net", "ads", "keytab", "add", principal); err != nil {
		return errors.Wrap(err, errors.ADKeytabFailed).WithMetadata("op", "add").WithMetadata("principal", principal)
	}
	return nil
}

// ListKeytabPrincipals lists the principals currently in the system keytab
// via `net ads keytab list`, one principal per non-empty line.
func (c *Client) ListKeytabPrincipals(ctx context.Context) ([]string, error) {
	output, err := c.executor.ExecuteWithCombinedOutput(ctx, "net", "ads", "keytab", "list")
	if err != nil {
		return nil, errors.Wrap(err, errors.ADKeytabFailed).WithMetadata("op", "list")
	}
	return splitNonEmptyLines(string(output)), nil
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// extractQuoted returns the first "..."-quoted substring in s, or "".
func extractQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start == -1 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end == -1 {
		return ""
	}
	return s[start+1 : start+1+end]
}
