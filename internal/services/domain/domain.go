// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package domain handles Active Directory domain membership operations.
//
// # Overview
//
// This package provides functionality to join, leave, and manage Linux host
// membership in Active Directory domains. It supports both a self-hosted
// Samba AD DC and external enterprise AD environments.
//
// # Domain Join Process
//
//  1. Kerberos Configuration (/etc/krb5.conf) — realm, KDC servers, domain
//     mapping. Required for 'net ads join' to authenticate with the DC.
//  2. Domain Join (net ads join) — creates the computer account in AD,
//     non-interactive via a stdin-piped password.
//  3. Winbind Service — restarted after join to apply domain membership.
//  4. PAM fragment — written so interactive logins can authenticate
//     against the domain (strategy configurable, see DomainConfig.PamUpdateStrategy).
//  5. NSS Configuration (/etc/nsswitch.conf) — added last, since it's the
//     step that makes 'id <aduser>' start resolving through winbind; if an
//     earlier step fails, NSS is never touched and the host looks unjoined.
//
// If winbind fails to come up after a join, the join is rolled back: the
// computer account is removed with 'net ads leave' and any config files
// written during the join are restored from their .bak copies.
//
// # Self-Hosted vs External AD
//
// Self-Hosted Mode (config.AD.Mode = "self-hosted"):
//   - Uses the Samba AD DC under config.AD.DC.
//
// External Mode (config.AD.Mode = "external"):
//   - Uses config.AD.External.DomainControllers, can fail over between DCs.
package domain

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/stratastor/horcrux/config"
	"github.com/stratastor/horcrux/internal/command"
	"github.com/stratastor/horcrux/internal/events"
	"github.com/stratastor/horcrux/internal/prereq"
	svcconfig "github.com/stratastor/horcrux/internal/services/config"
	"github.com/stratastor/horcrux/internal/system/privilege"
	"github.com/stratastor/logger"
)

// PamUpdateStrategy values
const (
	PamStrategyFragmentOnly = "fragment-only"
	PamStrategyNone         = "none"
)

// DomainConfig contains configuration for domain join operations
type DomainConfig struct {
	Realm             string   // AD realm (e.g., "AD.STRATA.INTERNAL")
	DCServers         []string // List of domain controller IPs/hostnames
	AdminUser         string   // Admin username for domain join
	AdminPassword     string   // Admin password
	IPAddress         string   // DC IP address (for DNS configuration)
	HostInterface     string   // Host interface for DNS configuration
	PamUpdateStrategy string   // "fragment-only" or "none"

	// Samba/winbind identity mapping, rendered into smb.conf by configureSMB.
	Workgroup       string // NetBIOS domain name, e.g. "STRATA"
	IdmapBackend    string // rid | ad | autorid
	IdmapRangeLow   int
	IdmapRangeHigh  int
	DefaultShell    string
	HomedirTemplate string // must contain %U
	OfflineAuth     bool   // winbind offline logon
	RFC2307         bool   // schema_mode = rfc2307
}

// Client handles domain membership operations. A single Client serves the
// whole process, so join, leave and machine-password rotation are
// serialized against each other with mu — 'net ads join' run twice
// concurrently against the same host corrupts the machine account state.
// Status takes no lock.
type Client struct {
	logger    logger.Logger
	executor  *command.CommandExecutor
	configMgr *svcconfig.ServiceConfigManager
	prereq    *prereq.Checker
	ldap      *ldapLookup // optional sid_to_name/name_to_sid accelerator, nil if unconfigured
	mu        sync.Mutex
}

// NewClient creates a new domain client
func NewClient(log logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	executor := command.NewCommandExecutor(true)

	cfg := config.GetConfig()
	ldapClient, err := newLDAPLookup(log, cfg.AD.LDAPURL, cfg.AD.BaseDN, cfg.AD.AdminDN, cfg.AD.AdminPassword)
	if err != nil {
		log.Warn("LDAP lookup accelerator unavailable, falling back to wbinfo only", "error", err)
		ldapClient = nil
	}

	configMgr := svcconfig.NewServiceConfigManager(log)
	if os.Geteuid() != 0 {
		privCfg := privilege.NewConfig(
			[]string{"/usr/share/pam-configs/horcrux-winbind", "/etc/nsswitch.conf"},
			[]string{"net", "wbinfo"},
		)
		factory := privilege.NewOperationsFactory(log, executor, privCfg)
		configMgr.SetPrivilegedWriter(factory.Create())
	}

	return &Client{
		logger:    log,
		executor:  executor,
		configMgr: configMgr,
		prereq:    prereq.NewChecker(log, 5*time.Second),
		ldap:      ldapClient,
	}, nil
}

// Join joins the host to an AD domain. On winbind verification failure
// after the join, it rolls back the computer account and every config
// file touched during this call.
func (c *Client) Join(ctx context.Context, cfg *DomainConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("Starting domain join process", "realm", cfg.Realm, "admin_user", cfg.AdminUser)

	if err := c.validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid domain configuration: %w", err)
	}

	report, err := c.prereq.Run(ctx, cfg.Realm, cfg.DCServers)
	if err != nil {
		return fmt.Errorf("failed to run pre-flight checks: %w", err)
	}
	if !report.Ready {
		return fmt.Errorf("pre-flight checks failed, aborting join: %+v", report.Checks)
	}
	c.logger.Info("Pre-flight checks passed", "realm", cfg.Realm, "elapsed", report.Elapsed)

	joined, _, err := c.testJoin(ctx)
	if err != nil {
		return fmt.Errorf("failed to probe existing join state: %w", err)
	}
	if joined {
		c.logger.Info("Host is already joined to AD domain", "realm", cfg.Realm)
		return nil
	}

	touched := []string{} // config paths written this call, for rollback

	rollback := func(cause error) error {
		c.logger.Error("Domain join failed, rolling back", "error", cause)
		if _, lErr := c.executor.ExecuteWithCombinedOutput(ctx, "net", "ads", "leave",
			"-U", cfg.AdminUser, "--password="+cfg.AdminPassword); lErr != nil {
			c.logger.Warn("Rollback: net ads leave failed (may not have joined yet)", "error", lErr)
		}
		for _, path := range touched {
			if rErr := c.configMgr.Rollback(path); rErr != nil {
				c.logger.Warn("Rollback: failed to restore config", "path", path, "error", rErr)
			}
		}
		return cause
	}

	// 1. Kerberos configuration
	krb5Path, err := c.configureKerberos(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to configure Kerberos: %w", err)
	}
	touched = append(touched, krb5Path)

	// 1b. Time sync, advisory: a join can still succeed briefly after clock
	// skew grows, but leaving it unsynced all but guarantees the next one
	// fails preauth, so this is wired in (not rolled back on later failure
	// since a clock fix should outlive a failed join attempt).
	if len(cfg.DCServers) > 0 {
		if _, err := c.configureChrony(ctx, cfg); err != nil {
			c.logger.Warn("Failed to configure chrony (advisory, join continues)", "error", err)
		}
	}

	// 1c. Samba configuration, following the same WriteFile/rollback path
	// as Kerberos.
	smbPath, err := c.configureSMB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to configure Samba: %w", err)
	}
	touched = append(touched, smbPath)

	// 2. Join the domain, credential delivered over stdin to avoid it
	// showing up in argv/ps output.
	c.logger.Info("Joining AD domain", "realm", cfg.Realm, "user", cfg.AdminUser)
	if err := c.netAdsJoin(ctx, cfg); err != nil {
		return rollback(fmt.Errorf("failed to join AD domain: %w", err))
	}
	c.logger.Info("Successfully joined AD domain", "realm", cfg.Realm)

	// 3. Restart winbind and verify it actually comes up joined.
	if _, err := c.executor.ExecuteWithCombinedOutput(ctx, "systemctl", "restart", "winbind"); err != nil {
		return rollback(fmt.Errorf("failed to restart winbind: %w", err))
	}
	if ok, err := c.verifyWinbind(ctx); err != nil || !ok {
		return rollback(fmt.Errorf("winbind failed to come up joined after restart: %w", err))
	}

	// 4. PAM fragment (best-effort by design choice, but still rolled back
	// on later NSS failure since it's part of "touched").
	strategy := cfg.PamUpdateStrategy
	if strategy == "" {
		strategy = PamStrategyFragmentOnly
	}
	if strategy == PamStrategyFragmentOnly {
		pamPath, err := c.configurePAM(ctx, cfg)
		if err != nil {
			return rollback(fmt.Errorf("failed to write PAM fragment: %w", err))
		}
		touched = append(touched, pamPath)
	}

	// 5. NSS last: this is the step that actually makes the host "look"
	// joined to `id`/`getent`, so it only happens once everything else
	// has succeeded.
	nssPath, err := c.configureNSS(ctx)
	if err != nil {
		return rollback(fmt.Errorf("failed to configure NSS: %w", err))
	}
	if nssPath != "" {
		touched = append(touched, nssPath)
	}

	// Register this host's AD-integrated DNS record (step 5): advisory, a
	// failure here does not unwind the join since Joined has already been
	// reached.
	if err := c.RegisterDNS(ctx); err != nil {
		c.logger.Warn("Failed to register host DNS with domain controller (advisory, join still stands)", "error", err)
	}

	// Point the local resolver at the DC, a separate concern from AD DNS
	// registration above: advisory for the same reason.
	if cfg.IPAddress != "" && cfg.HostInterface != "" {
		if err := c.configureLocalResolver(ctx, cfg); err != nil {
			c.logger.Warn("Failed to configure host DNS resolver (advisory, join still stands)", "error", err)
		}
	}

	workgroup := cfg.Workgroup
	if workgroup == "" {
		workgroup = config.GetConfig().Shares.SMB.Workgroup
	}
	events.EmitDomainJoin(events.LevelInfo, cfg.Realm, workgroup, nil)
	return nil
}

// Leave removes the host from the AD domain
func (c *Client) Leave(ctx context.Context, cfg *DomainConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("Leaving AD domain", "realm", cfg.Realm)

	joined, _, err := c.testJoin(ctx)
	if err != nil {
		return fmt.Errorf("failed to probe join state: %w", err)
	}
	if !joined {
		c.logger.Info("Host is not joined to any domain")
		return nil
	}

	if err := c.UnregisterDNS(ctx); err != nil {
		c.logger.Warn("Failed to unregister host DNS before leaving (advisory)", "error", err)
	}

	if _, err := c.executor.ExecuteWithCombinedOutput(ctx, "net", "ads", "leave",
		"-U", cfg.AdminUser, "--password="+cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to leave AD domain: %w", err)
	}

	c.logger.Info("Successfully left AD domain")

	if _, err := c.executor.ExecuteWithCombinedOutput(ctx, "systemctl", "restart", "winbind"); err != nil {
		c.logger.Warn("Failed to restart winbind after leave", "error", err)
	}

	events.EmitDomainLeave(events.LevelInfo, cfg.Realm, nil)
	return nil
}

// Status reports whether the host is joined, and to what domain.
func (c *Client) Status(ctx context.Context) (bool, string, error) {
	return c.testJoin(ctx)
}

func (c *Client) testJoin(ctx context.Context) (bool, string, error) {
	output, err := c.executor.ExecuteWithCombinedOutput(ctx, "net", "ads", "testjoin")
	if err != nil {
		return false, "", nil // non-zero exit means "not joined", not an error
	}
	return true, strings.TrimSpace(string(output)), nil
}

// verifyWinbind checks that winbind enumerates the domain after a join,
// i.e. `wbinfo -t` (trust secret check) succeeds.
func (c *Client) verifyWinbind(ctx context.Context) (bool, error) {
	_, err := c.executor.ExecuteWithCombinedOutput(ctx, "wbinfo", "-t")
	if err != nil {
		return false, err
	}
	return true, nil
}

// SIDToName resolves a Windows SID to its sAMAccountName. It tries the
// LDAP accelerator first when configured, falling back to `wbinfo -s`
// (the mandated, authoritative path) on a miss or when LDAP isn't wired.
func (c *Client) SIDToName(ctx context.Context, sid string) (string, error) {
	if c.ldap != nil {
		if name, ok, err := c.ldap.SIDToName(sid); err == nil && ok {
			return name, nil
		} else if err != nil {
			c.logger.Debug("LDAP sid_to_name lookup failed, falling back to wbinfo", "sid", sid, "error", err)
		}
	}

	output, err := c.executor.ExecuteWithCombinedOutput(ctx, "wbinfo", "-s", sid)
	if err != nil {
		return "", fmt.Errorf("wbinfo sid_to_name failed for %s: %w", sid, err)
	}
	name := strings.TrimSpace(string(output))
	if idx := strings.LastIndex(name, " "); idx != -1 {
		name = name[:idx] // wbinfo appends "SID_TYPE" after the name
	}
	return name, nil
}

// NameToSID resolves a sAMAccountName (DOMAIN\name or bare name) to its
// SID, via the LDAP accelerator when available, else `wbinfo -n`.
func (c *Client) NameToSID(ctx context.Context, name string) (string, error) {
	if c.ldap != nil {
		if sid, ok, err := c.ldap.NameToSID(name); err == nil && ok {
			return sid, nil
		} else if err != nil {
			c.logger.Debug("LDAP name_to_sid lookup failed, falling back to wbinfo", "name", name, "error", err)
		}
	}

	output, err := c.executor.ExecuteWithCombinedOutput(ctx, "wbinfo", "-n", name)
	if err != nil {
		return "", fmt.Errorf("wbinfo name_to_sid failed for %s: %w", name, err)
	}
	sid := strings.TrimSpace(string(output))
	if idx := strings.LastIndex(sid, " "); idx != -1 {
		sid = sid[:idx]
	}
	return sid, nil
}

// Close releases the optional LDAP accelerator connection, if any.
func (c *Client) Close() {
	if c.ldap != nil {
		c.ldap.Close()
	}
}

// WaitForDC waits for a domain controller's LDAPS port to be reachable.
func (c *Client) WaitForDC(ctx context.Context, dcServer string, timeout time.Duration) error {
	const ldapsPort = "636"

	deadline := time.Now().Add(timeout)
	attempt := 0

	for time.Now().Before(deadline) {
		attempt++

		conn, err := net.DialTimeout("tcp", dcServer+":"+ldapsPort, 2*time.Second)
		if err == nil {
			conn.Close()
			c.logger.Info("Domain controller LDAPS port is reachable", "dc", dcServer, "attempts", attempt)
			return nil
		}

		c.logger.Debug("Waiting for domain controller LDAPS port",
			"attempt", attempt, "dc", dcServer, "port", ldapsPort, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for DC")
		case <-time.After(2 * time.Second):
		}
	}

	return fmt.Errorf("timeout waiting for DC %s to be ready after %v", dcServer, timeout)
}

func (c *Client) validateConfig(cfg *DomainConfig) error {
	if cfg.Realm == "" {
		return fmt.Errorf("realm is required")
	}
	if len(cfg.DCServers) == 0 {
		return fmt.Errorf("at least one domain controller is required")
	}
	if cfg.AdminUser == "" {
		return fmt.Errorf("admin user is required")
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("admin password is required")
	}
	if cfg.IdmapRangeLow > 0 || cfg.IdmapRangeHigh > 0 {
		if cfg.IdmapRangeLow >= cfg.IdmapRangeHigh {
			return fmt.Errorf("idmap range low (%d) must be less than high (%d)", cfg.IdmapRangeLow, cfg.IdmapRangeHigh)
		}
		if cfg.IdmapRangeHigh-cfg.IdmapRangeLow < 10000 {
			return fmt.Errorf("idmap range must span at least 10000 ids, got %d-%d", cfg.IdmapRangeLow, cfg.IdmapRangeHigh)
		}
	}
	if cfg.HomedirTemplate != "" && !strings.Contains(cfg.HomedirTemplate, "%U") {
		return fmt.Errorf("homedir template %q must contain %%U", cfg.HomedirTemplate)
	}
	return nil
}

// netAdsJoin runs 'net ads join', piping the admin password over stdin
// rather than --password so it never appears in argv/ps output. Samba's
// 'net' tool reads a password from stdin when --password is omitted and
// stdin is not a tty.
func (c *Client) netAdsJoin(ctx context.Context, cfg *DomainConfig) error {
	if strings.Contains(cfg.AdminPassword, "%") {
		// Samba's --password parsing historically mishandles a literal '%'
		// in the value; fall back to stdin delivery unconditionally in
		// that case (stdin has no such escaping quirks).
		c.logger.Debug("Admin password contains '%', using stdin credential delivery")
	}

	_, err := c.executor.ExecuteWithStdin(ctx, cfg.AdminPassword+"\n", "net", "ads", "join",
		"-U", cfg.AdminUser)
	return err
}

// configureKerberos writes a minimal Kerberos configuration for AD and
// returns the path written, for rollback bookkeeping.
func (c *Client) configureKerberos(ctx context.Context, cfg *DomainConfig) (string, error) {
	realm := strings.ToUpper(cfg.Realm)
	domainLower := strings.ToLower(cfg.Realm)

	c.logger.Info("Configuring Kerberos", "realm", realm)

	kdcList := ""
	for _, dc := range cfg.DCServers {
		kdcList += fmt.Sprintf("        kdc = %s\n", dc)
	}

	krb5Conf := fmt.Sprintf(`[libdefaults]
    default_realm = %s
    dns_lookup_realm = false
    dns_lookup_kdc = true
    ticket_lifetime = 30d
    renew_lifetime = 365d
    forwardable = true

[realms]
    %s = {
%s        admin_server = %s
        default_domain = %s
    }
`, realm, realm, kdcList, cfg.DCServers[0], domainLower)

	const krb5Path = "/etc/krb5.conf"
	if err := c.configMgr.WriteFile(krb5Path, []byte(krb5Conf), 0644); err != nil {
		return "", err
	}
	c.logger.Info("Kerberos configuration written successfully")
	return krb5Path, nil
}

// renderSMBConf builds smb.conf's [global] section per spec.md §4.3's exact
// bullet list. Kept separate from configureSMB so the rendering logic is
// unit-testable without touching the filesystem, the way webdav's
// renderVhost is split from Manager.applyShare.
func renderSMBConf(cfg *DomainConfig) string {
	realm := strings.ToUpper(cfg.Realm)
	workgroup := cfg.Workgroup
	if workgroup == "" {
		workgroup = strings.ToUpper(strings.SplitN(realm, ".", 2)[0])
	}

	idmapBackend := cfg.IdmapBackend
	if idmapBackend == "" {
		idmapBackend = "rid"
	}
	rangeLow, rangeHigh := cfg.IdmapRangeLow, cfg.IdmapRangeHigh
	if rangeLow == 0 && rangeHigh == 0 {
		rangeLow, rangeHigh = 10000, 999999
	}
	shell := cfg.DefaultShell
	if shell == "" {
		shell = "/bin/bash"
	}
	homedir := cfg.HomedirTemplate
	if homedir == "" {
		homedir = "/home/%U"
	}

	var b strings.Builder
	b.WriteString("[global]\n")
	b.WriteString("    security = ADS\n")
	fmt.Fprintf(&b, "    realm = %s\n", realm)
	fmt.Fprintf(&b, "    workgroup = %s\n", workgroup)
	b.WriteString("    kerberos method = secrets and keytab\n")
	b.WriteString("    dedicated keytab file = /etc/krb5.keytab\n")
	b.WriteString("    winbind use default domain = yes\n")
	b.WriteString("    winbind enum users = yes\n")
	b.WriteString("    winbind enum groups = yes\n")
	b.WriteString("    winbind refresh tickets = yes\n")
	if cfg.OfflineAuth {
		b.WriteString("    winbind offline logon = yes\n")
	}
	fmt.Fprintf(&b, "    idmap config * : backend = tdb\n")
	fmt.Fprintf(&b, "    idmap config * : range = %d-%d\n", rangeLow, rangeHigh)
	fmt.Fprintf(&b, "    idmap config %s : backend = %s\n", workgroup, idmapBackend)
	fmt.Fprintf(&b, "    idmap config %s : range = %d-%d\n", workgroup, rangeLow, rangeHigh)
	fmt.Fprintf(&b, "    template shell = %s\n", shell)
	fmt.Fprintf(&b, "    template homedir = %s\n", homedir)
	if cfg.RFC2307 {
		b.WriteString("    idmap config " + workgroup + " : schema_mode = rfc2307\n")
	}

	return b.String()
}

// configureSMB writes smb.conf's [global] section for a domain-joined host
// and returns the path written, for rollback bookkeeping. Follows the same
// shape as configureKerberos: render a fragment and hand it to
// configMgr.WriteFile so it participates in the same .bak rollback path.
func (c *Client) configureSMB(ctx context.Context, cfg *DomainConfig) (string, error) {
	c.logger.Info("Configuring Samba", "realm", strings.ToUpper(cfg.Realm), "workgroup", cfg.Workgroup)

	const smbConfPath = "/etc/samba/smb.conf"
	if err := c.configMgr.WriteFile(smbConfPath, []byte(renderSMBConf(cfg)), 0644); err != nil {
		return "", err
	}
	c.logger.Info("Samba configuration written successfully")
	return smbConfPath, nil
}

// renderChronyConf builds a single-server chrony stanza pointing at dcServer.
func renderChronyConf(dcServer string) string {
	return fmt.Sprintf(`server %s iburst
driftfile /var/lib/chrony/drift
makestep 1.0 3
rtcsync
`, dcServer)
}

// configureChrony writes a single-server time-sync stanza pointing at the
// first domain controller, since Kerberos preauth rejects tickets once the
// host clock drifts past the realm's skew tolerance (see prereq.MaxClockSkew).
func (c *Client) configureChrony(ctx context.Context, cfg *DomainConfig) (string, error) {
	c.logger.Info("Configuring chrony against domain controller", "dc", cfg.DCServers[0])

	chronyConf := renderChronyConf(cfg.DCServers[0])

	const chronyPath = "/etc/chrony/conf.d/horcrux-ad.conf"
	if err := c.configMgr.WriteFile(chronyPath, []byte(chronyConf), 0644); err != nil {
		return "", err
	}
	if _, err := c.executor.ExecuteWithCombinedOutput(ctx, "systemctl", "restart", "chrony"); err != nil {
		c.logger.Warn("Failed to restart chrony after writing time-sync config (advisory)", "error", err)
	}
	c.logger.Info("Chrony configuration written successfully")
	return chronyPath, nil
}

// configurePAM writes a pam-auth-update style fragment so interactive
// logins authenticate via winbind/pam_winbind.
func (c *Client) configurePAM(ctx context.Context, cfg *DomainConfig) (string, error) {
	const pamPath = "/usr/share/pam-configs/horcrux-winbind"

	fragment := `Name: Winbind NT/Active Directory authentication (managed by horcrux)
Default: yes
Priority: 192
Auth-Type: Primary
Auth:
	[success=end default=ignore]	pam_winbind.so krb5_auth krb5_ccache_type=FILE cached_login
Account-Type: Primary
Account:
	[success=ok new_authtok_reqd=ok ignore=ignore default=bad]	pam_winbind.so
Session-Type: Additional
Session:
	optional	pam_mkhomedir.so umask=0022 skel=/etc/skel
`

	if err := c.configMgr.WriteFile(pamPath, []byte(fragment), 0644); err != nil {
		return "", err
	}

	if _, err := c.executor.ExecuteWithCombinedOutput(ctx, "pam-auth-update", "--package"); err != nil {
		c.logger.Warn("pam-auth-update failed, PAM fragment written but not activated", "error", err)
	}

	return pamPath, nil
}

// configureNSS updates /etc/nsswitch.conf to use winbind for user/group
// resolution, idempotently: it only inserts the "winbind" token into the
// passwd/group lines if it is not already present, rather than blindly
// overwriting them (which would clobber any site customization, e.g. sss).
func (c *Client) configureNSS(ctx context.Context) (string, error) {
	c.logger.Info("Configuring NSS for winbind")

	const nssPath = "/etc/nsswitch.conf"

	current, err := c.configMgr.ReadCurrent(nssPath)
	if err != nil {
		return "", fmt.Errorf("failed to read nsswitch.conf: %w", err)
	}

	updated, changed := insertNSSToken(string(current), "passwd", "winbind")
	updated, changedGroup := insertNSSToken(updated, "group", "winbind")
	changed = changed || changedGroup

	if !changed {
		c.logger.Debug("NSS already configured for winbind")
		return "", nil
	}

	if err := c.configMgr.WriteFile(nssPath, []byte(updated), 0644); err != nil {
		return "", err
	}

	c.logger.Info("NSS configured for winbind")
	return nssPath, nil
}

// insertNSSToken appends token to the named nsswitch.conf database line
// (e.g. "passwd: files systemd") if it isn't already one of the tokens on
// that line. Returns the updated content and whether a change was made.
func insertNSSToken(content, db, token string) (string, bool) {
	lines := strings.Split(content, "\n")
	changed := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, db+":") {
			continue
		}

		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, db+":"))
		tokens := strings.Fields(rest)
		for _, t := range tokens {
			if t == token {
				return content, false // already present
			}
		}

		tokens = append(tokens, token)
		lines[i] = fmt.Sprintf("%s:%*s%s", db, 9-len(db), "", strings.Join(tokens, " "))
		changed = true
	}

	return strings.Join(lines, "\n"), changed
}

// configureLocalResolver points this host's local resolver at the domain
// controller. This only affects what this host itself uses for lookups; it
// is not the mechanism that registers this host's own record in AD-integrated
// DNS — that is RegisterDNS, via `net ads dns register`.
func (c *Client) configureLocalResolver(ctx context.Context, cfg *DomainConfig) error {
	c.logger.Info("Configuring host DNS for AD DC", "dc_ip", cfg.IPAddress, "interface", cfg.HostInterface)

	realm := strings.ToLower(cfg.Realm)

	if _, err := c.executor.ExecuteWithCombinedOutput(ctx, "resolvectl", "dns", cfg.HostInterface, cfg.IPAddress); err != nil {
		c.logger.Warn("Failed to set DNS server via resolvectl", "error", err)
	}

	if _, err := c.executor.ExecuteWithCombinedOutput(ctx, "resolvectl", "domain", cfg.HostInterface, realm); err != nil {
		c.logger.Warn("Failed to set DNS domain via resolvectl", "error", err)
	}

	return nil
}

// GetConfigFromGlobal returns DomainConfig populated from global config
func GetConfigFromGlobal() *DomainConfig {
	cfg := config.GetConfig()

	domainCfg := &DomainConfig{
		Realm:             cfg.AD.Realm,
		AdminPassword:     cfg.AD.AdminPassword,
		PamUpdateStrategy: cfg.AD.PamUpdateStrategy,
		Workgroup:         cfg.AD.Workgroup,
		IdmapBackend:      cfg.AD.IdmapBackend,
		IdmapRangeLow:     cfg.AD.IdmapRangeLow,
		IdmapRangeHigh:    cfg.AD.IdmapRangeHigh,
		DefaultShell:      cfg.AD.DefaultShell,
		HomedirTemplate:   cfg.AD.HomedirTemplate,
		OfflineAuth:       cfg.AD.OfflineAuth,
		RFC2307:           cfg.AD.RFC2307,
	}

	if cfg.AD.Mode == "external" {
		domainCfg.DCServers = cfg.AD.External.DomainControllers
		domainCfg.AdminUser = cfg.AD.External.AdminUser
		if domainCfg.AdminUser == "" {
			domainCfg.AdminUser = "Administrator"
		}
	} else if cfg.AD.DC.Enabled {
		dcFQDN := fmt.Sprintf("%s.%s",
			strings.ToUpper(cfg.AD.DC.Hostname),
			strings.ToLower(cfg.AD.DC.Realm))
		domainCfg.DCServers = []string{dcFQDN}
		domainCfg.AdminUser = "Administrator"
		domainCfg.Realm = cfg.AD.DC.Realm
		domainCfg.IPAddress = cfg.AD.DC.IPAddress
		domainCfg.HostInterface = cfg.AD.DC.ParentInterface
	}

	return domainCfg
}
