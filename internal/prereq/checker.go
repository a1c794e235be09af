// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package prereq

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/horcrux/pkg/errors"
)

// Checker runs the pre-flight probes a domain join depends on.
type Checker struct {
	logger  logger.Logger
	timeout time.Duration
}

// NewChecker creates a Checker. timeout bounds each individual probe, not
// the whole Report.
func NewChecker(log logger.Logger, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{logger: log, timeout: timeout}
}

// Run executes every probe concurrently and waits for all of them: one
// goroutine per probe, joined with a WaitGroup.
func (c *Checker) Run(ctx context.Context, realm string, dcServers []string) (*Report, error) {
	if realm == "" {
		return nil, errors.New(errors.PrereqCheckFailed, "realm is required")
	}
	if len(dcServers) == 0 {
		return nil, errors.New(errors.PrereqCheckFailed, "at least one domain controller is required")
	}

	start := time.Now()
	results := make([]CheckResult, 4)
	var openPorts []int
	var binaries map[string]bool
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		results[0] = c.checkDNSSRV(ctx, realm)
	}()
	go func() {
		defer wg.Done()
		results[1], openPorts = c.checkDCReachable(ctx, dcServers[0])
	}()
	go func() {
		defer wg.Done()
		results[2] = c.checkClockSkew(ctx, dcServers[0])
	}()
	go func() {
		defer wg.Done()
		results[3], binaries = c.checkRequiredBinaries(ctx)
	}()

	wg.Wait()

	ready := true
	for _, r := range results {
		if !r.OK {
			ready = false
			break
		}
	}

	report := &Report{
		Realm:   realm,
		Ready:   ready,
		Checks:  results,
		Prereqs: buildPrerequisites(results, openPorts, binaries),
		Elapsed: time.Since(start),
	}

	c.logger.Info("Prerequisite check complete",
		"realm", realm, "ready", ready, "elapsed", report.Elapsed)

	return report, nil
}

func (c *Checker) checkDNSSRV(ctx context.Context, realm string) CheckResult {
	start := time.Now()
	name := CheckDNSSRV

	resolver := &net.Resolver{}
	_, srvs, err := resolver.LookupSRV(ctx, "ldap", "tcp", strings.ToLower(realm))
	if err != nil {
		return CheckResult{
			Name: name, OK: false,
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}
	if len(srvs) == 0 {
		return CheckResult{
			Name: name, OK: false,
			Error:    fmt.Sprintf("no _ldap._tcp.%s SRV records found", strings.ToLower(realm)),
			Duration: time.Since(start),
		}
	}

	targets := make([]string, 0, len(srvs))
	for _, s := range srvs {
		targets = append(targets, strings.TrimSuffix(s.Target, "."))
	}

	return CheckResult{
		Name: name, OK: true,
		Detail:   fmt.Sprintf("resolved %d DC(s): %s", len(targets), strings.Join(targets, ", ")),
		Duration: time.Since(start),
	}
}

// checkDCReachable probes ICMP echo first (best-effort, via the 'ping'
// binary rather than a raw-socket library — consistent with how the rest
// of this package and C1 shell out to system tools instead of linking
// privileged libraries), then TCP-connects to every port in RequiredPorts
// concurrently, recording which ones accepted a connection. The DC is
// considered reachable if the ping succeeds or at least one required port
// is open.
func (c *Checker) checkDCReachable(ctx context.Context, dcServer string) (CheckResult, []int) {
	start := time.Now()
	name := CheckDCReachable

	pingOK := pingHost(ctx, dcServer, 3*time.Second)

	open := make([]int, 0, len(RequiredPorts))
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(RequiredPorts))
	for _, port := range RequiredPorts {
		port := port
		go func() {
			defer wg.Done()
			d := net.Dialer{Timeout: c.timeout}
			conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", dcServer, port))
			if err != nil {
				return
			}
			conn.Close()
			mu.Lock()
			open = append(open, port)
			mu.Unlock()
		}()
	}
	wg.Wait()
	sort.Ints(open)

	if !pingOK && len(open) == 0 {
		return CheckResult{
			Name: name, OK: false,
			Error:    fmt.Sprintf("%s did not respond to ping and none of ports %v are open", dcServer, RequiredPorts),
			Duration: time.Since(start),
		}, open
	}

	return CheckResult{
		Name: name, OK: true,
		Detail:   fmt.Sprintf("%s reachable (ping=%v, open ports: %v)", dcServer, pingOK, open),
		Duration: time.Since(start),
	}, open
}

// pingHost shells out to 'ping' for one ICMP echo. A missing 'ping' binary
// or a timeout both simply count as "no ping response" — this signal is
// advisory (TCP reachability on the required ports is authoritative).
func pingHost(ctx context.Context, host string, timeout time.Duration) bool {
	if _, err := exec.LookPath("ping"); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	cmd := exec.CommandContext(ctx, "ping", "-c", "1", "-W", fmt.Sprintf("%d", secs), host)
	return cmd.Run() == nil
}

func (c *Checker) checkClockSkew(ctx context.Context, dcServer string) CheckResult {
	start := time.Now()
	name := CheckClockSkew

	offset, err := queryNTPOffset(dcServer, c.timeout)
	if err != nil {
		return CheckResult{
			Name: name, OK: false,
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}

	abs := offset
	if abs < 0 {
		abs = -abs
	}
	if abs > MaxClockSkew {
		return CheckResult{
			Name: name, OK: false,
			Error:    fmt.Sprintf("clock skew %v exceeds tolerance %v", offset, MaxClockSkew),
			Duration: time.Since(start),
		}
	}

	return CheckResult{
		Name: name, OK: true,
		Detail:   fmt.Sprintf("clock skew %v within tolerance", offset),
		Duration: time.Since(start),
	}
}

func (c *Checker) checkRequiredBinaries(ctx context.Context) (CheckResult, map[string]bool) {
	start := time.Now()
	name := CheckRequiredBins

	present := make(map[string]bool, len(RequiredBinaries))
	var missing []string
	for _, bin := range RequiredBinaries {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		} else {
			present[bin] = true
		}
	}

	if len(missing) > 0 {
		return CheckResult{
			Name: name, OK: false,
			Error:    fmt.Sprintf("missing required binaries: %s", strings.Join(missing, ", ")),
			Duration: time.Since(start),
		}, present
	}

	return CheckResult{
		Name: name, OK: true,
		Detail:   fmt.Sprintf("all required binaries present: %s", strings.Join(RequiredBinaries, ", ")),
		Duration: time.Since(start),
	}, present
}

// buildPrerequisites flattens the four probe results into the
// JoinPrerequisites shape a join call gates its decision on. results is
// ordered [dns_srv, dc_reachable, clock_skew, required_binaries], matching
// Run's fan-out.
func buildPrerequisites(results []CheckResult, openPorts []int, binaries map[string]bool) JoinPrerequisites {
	var errs []string
	for _, r := range results {
		if !r.OK && r.Error != "" {
			errs = append(errs, string(r.Name)+": "+r.Error)
		}
	}

	return JoinPrerequisites{
		DNSResolves:      results[0].OK,
		DCReachable:      results[1].OK,
		TimeSynced:       results[2].OK,
		PortsOpen:        openPorts,
		SambaInstalled:   binaries["net"],
		WinbindInstalled: binaries["wbinfo"],
		Krb5Installed:    binaries["kinit"],
		Errors:           errs,
	}
}
