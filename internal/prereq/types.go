// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package prereq runs the pre-flight checks a domain join depends on:
// DNS SRV discovery for the realm's domain controllers, DC reachability,
// local/remote clock skew, and the system binaries `net`/`wbinfo`/`kinit`
// the join shells out to.
package prereq

import "time"

// CheckName identifies a single pre-flight probe.
type CheckName string

const (
	CheckDNSSRV       CheckName = "dns_srv"
	CheckDCReachable  CheckName = "dc_reachable"
	CheckClockSkew    CheckName = "clock_skew"
	CheckRequiredBins CheckName = "required_binaries"
)

// CheckResult is the outcome of a single probe.
type CheckResult struct {
	Name     CheckName     `json:"name"`
	OK       bool          `json:"ok"`
	Detail   string        `json:"detail,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report aggregates every probe run for one join attempt, in both the
// verbose per-probe shape (Checks, for CLI/log output) and the flattened
// JoinPrerequisites shape callers actually gate a join decision on.
type Report struct {
	Realm   string            `json:"realm"`
	Ready   bool              `json:"ready"` // true only if every check passed
	Checks  []CheckResult     `json:"checks"`
	Prereqs JoinPrerequisites `json:"prerequisites"`
	Elapsed time.Duration     `json:"elapsed"`
}

// RequiredPorts are the TCP ports a domain join depends on: 88 (Kerberos),
// 389 (LDAP), 445 (SMB/CIFS), 464 (kpasswd).
var RequiredPorts = []int{88, 389, 445, 464}

// RequiredBinaries are the external tools a domain join shells out to:
// net/wbinfo (samba-common-bin) and kinit (krb5-user).
var RequiredBinaries = []string{"net", "wbinfo", "kinit"}

// JoinPrerequisites is the flattened readiness answer a join call actually
// gates on: one boolean/list per question, plus a free-form Errors list
// for anything that went wrong gathering them (a tool being absent is
// recorded here rather than failing the whole probe).
type JoinPrerequisites struct {
	DNSResolves      bool     `json:"dnsResolves"`
	DCReachable      bool     `json:"dcReachable"`
	TimeSynced       bool     `json:"timeSynced"`
	PortsOpen        []int    `json:"portsOpen"` // subset of RequiredPorts that accepted a TCP connect
	SambaInstalled   bool     `json:"sambaInstalled"`
	WinbindInstalled bool     `json:"winbindInstalled"`
	Krb5Installed    bool     `json:"krb5Installed"`
	Errors           []string `json:"errors,omitempty"`
}

// MaxClockSkew is the largest tolerable difference between this host's
// clock and the domain controller's before Kerberos preauth starts
// failing (Kerberos' default 5-minute skew tolerance, halved for margin).
const MaxClockSkew = 150 * time.Second
