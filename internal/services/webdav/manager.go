// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package webdav

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/stratastor/logger"

	"github.com/stratastor/horcrux/config"
	"github.com/stratastor/horcrux/internal/command"
	"github.com/stratastor/horcrux/internal/events"
	svcconfig "github.com/stratastor/horcrux/internal/services/config"
	"github.com/stratastor/horcrux/internal/system/privilege"
	"github.com/stratastor/horcrux/pkg/errors"
)

var shareIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][-a-zA-Z0-9_.]{0,62}$`)

// Manager realizes WebDAV share intent as nginx configuration, following
// pkg/shares/smb.Manager's shape (logger, executor, configDir, mutex) but
// driving nginx instead of smbd: per-share JSON sidecars live in configDir,
// rendered vhost fragments live in sitesAvailableDir with a symlink into
// vhostDir (nginx's sites-enabled). Add and update go through the
// validate (nginx -t) -> reload (nginx -s reload) -> rollback-on-failure
// pipeline; remove, enable and disable only reload nginx, without
// nginx -t and without rollback.
type Manager struct {
	logger  logger.Logger
	executor *command.CommandExecutor
	cfgMgr  *svcconfig.ServiceConfigManager

	configDir         string
	sitesAvailableDir string
	vhostDir          string
	htpasswdDir       string
	clientBodyTempDir string
	nginxBin          string
	htpasswdBin       string

	mu       sync.Mutex            // guards configDir JSON sidecar reads/writes
	shareMus map[string]*sync.Mutex // per-share apply serialization
	nginxMu  sync.Mutex            // serializes nginx -t / nginx -s reload globally
}

// NewManager constructs a WebDAV realizer, ensuring its managed directories
// (including the nginx client-body temp dir, per spec.md §4.6) exist.
func NewManager(log logger.Logger) (*Manager, error) {
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	cfg := config.GetConfig()

	m := &Manager{
		logger:            log,
		executor:          command.NewCommandExecutor(true),
		cfgMgr:            svcconfig.NewServiceConfigManager(log),
		configDir:         config.GetWebDAVDir(),
		sitesAvailableDir: cfg.WebDAV.SitesAvailableDir,
		vhostDir:          cfg.WebDAV.VHostDir,
		htpasswdDir:       cfg.WebDAV.HtpasswdDir,
		clientBodyTempDir: cfg.WebDAV.ClientBodyTempDir,
		nginxBin:          cfg.WebDAV.NginxBin,
		htpasswdBin:       cfg.WebDAV.HtpasswdBin,
		shareMus:          make(map[string]*sync.Mutex),
	}

	for _, dir := range []string{m.configDir, m.sitesAvailableDir, m.vhostDir, m.htpasswdDir, m.clientBodyTempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create webdav directory %s: %w", dir, err)
		}
	}

	// Vhost fragments under sitesAvailableDir are frequently root-owned
	// (nginx's own config tree); when this process isn't running as root,
	// fall back to sudo for those writes rather than failing the apply.
	if os.Geteuid() != 0 {
		privCfg := privilege.NewConfig(
			[]string{m.configDir, m.sitesAvailableDir, m.vhostDir, m.htpasswdDir},
			[]string{m.nginxBin, m.htpasswdBin},
		)
		factory := privilege.NewOperationsFactory(log, m.executor, privCfg)
		m.cfgMgr.SetPrivilegedWriter(factory.Create())
	}

	return m, nil
}

func (m *Manager) shareLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.shareMus[id]
	if !ok {
		l = &sync.Mutex{}
		m.shareMus[id] = l
	}
	return l
}

func (m *Manager) sidecarPath(id string) string {
	return filepath.Join(m.configDir, id+configFileExt)
}

func (m *Manager) validateShare(s *Share) error {
	if s.ID == "" || !shareIDRegex.MatchString(s.ID) {
		return errors.New(errors.WebDAVInvalidInput, "invalid share id").WithMetadata("id", s.ID)
	}
	if s.Path == "" {
		return errors.New(errors.WebDAVInvalidInput, "share path cannot be empty")
	}
	if _, err := os.Stat(s.Path); os.IsNotExist(err) {
		return errors.New(errors.WebDAVInvalidInput, "share path does not exist").WithMetadata("path", s.Path)
	}
	if s.ListenPort == 0 {
		s.ListenPort = config.GetConfig().WebDAV.ListenPort
	}
	if s.AuthMode == "" {
		return errors.New(errors.WebDAVInvalidInput, "auth mode required")
	}
	if s.AuthMode == AuthLDAP && s.LDAP == nil {
		return errors.New(errors.WebDAVLdapConfigInvalid, "ldap auth mode requires an ldap config block")
	}
	return nil
}

// ListShares returns every share with a JSON sidecar in configDir.
func (m *Manager) ListShares(ctx context.Context) ([]*Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(m.configDir, "*"+configFileExt))
	if err != nil {
		return nil, errors.Wrap(err, errors.WebDAVInternalError)
	}

	var result []*Share
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			m.logger.Warn("Failed to read webdav share sidecar", "file", f, "err", err)
			continue
		}
		var s Share
		if err := json.Unmarshal(data, &s); err != nil {
			m.logger.Warn("Failed to parse webdav share sidecar", "file", f, "err", err)
			continue
		}
		result = append(result, &s)
	}
	return result, nil
}

// GetShare reads a single share's sidecar.
func (m *Manager) GetShare(ctx context.Context, id string) (*Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readSidecar(id)
}

func (m *Manager) readSidecar(id string) (*Share, error) {
	data, err := os.ReadFile(m.sidecarPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.WebDAVShareNotFound, "webdav share not found").WithMetadata("id", id)
		}
		return nil, errors.Wrap(err, errors.WebDAVInternalError)
	}
	var s Share
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, errors.WebDAVInternalError)
	}
	return &s, nil
}

func (m *Manager) writeSidecar(s *Share) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.WebDAVInternalError)
	}
	if err := os.WriteFile(m.sidecarPath(s.ID), data, 0644); err != nil {
		return errors.Wrap(err, errors.WebDAVInternalError)
	}
	return nil
}

// AddShare creates a new share and applies it; it is the same as
// AddShareExtended and uses the share's settings as given.
func (m *Manager) AddShare(ctx context.Context, s *Share) error {
	return m.AddShareExtended(ctx, s)
}

// AddShareExtended creates a new share carrying the full extended config
// (SSL/LDAP/DAV extensions/rate limiting) and applies it.
func (m *Manager) AddShareExtended(ctx context.Context, s *Share) error {
	if err := m.validateShare(s); err != nil {
		return err
	}

	m.mu.Lock()
	if _, err := os.Stat(m.sidecarPath(s.ID)); err == nil {
		m.mu.Unlock()
		return errors.New(errors.WebDAVShareAlreadyExists, "webdav share already exists").WithMetadata("id", s.ID)
	}
	now := time.Now()
	s.Created, s.Modified = now, now
	err := m.writeSidecar(s)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if err := m.applyShare(ctx, s); err != nil {
		return err
	}
	events.EmitWebDAVShareChange(events.LevelInfo, s.ID, "created", nil)
	return nil
}

// UpdateShare rewrites an existing share's config and re-applies it.
func (m *Manager) UpdateShare(ctx context.Context, id string, s *Share) error {
	if id != s.ID {
		return errors.New(errors.WebDAVInvalidInput, "share id mismatch")
	}
	if err := m.validateShare(s); err != nil {
		return err
	}

	m.mu.Lock()
	existing, err := m.readSidecar(id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	s.Created = existing.Created
	s.Modified = time.Now()
	err = m.writeSidecar(s)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if err := m.applyShare(ctx, s); err != nil {
		return err
	}
	events.EmitWebDAVShareChange(events.LevelInfo, s.ID, "updated", nil)
	return nil
}

// RemoveShare tears down a share's symlink, vhost fragment, htpasswd file
// and sidecar, then reloads nginx.
func (m *Manager) RemoveShare(ctx context.Context, id string) error {
	lock := m.shareLock(id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	if _, err := m.readSidecar(id); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	enabledPath := filepath.Join(m.vhostDir, confFileName(id))
	availablePath := filepath.Join(m.sitesAvailableDir, confFileName(id))
	htpasswdPath := filepath.Join(m.htpasswdDir, htpasswdFileName(id))

	_ = os.Remove(enabledPath)
	_ = os.Remove(availablePath)
	_ = os.Remove(htpasswdPath)

	m.mu.Lock()
	_ = os.Remove(m.sidecarPath(id))
	m.mu.Unlock()

	if err := m.reload(ctx); err != nil {
		return err
	}
	events.EmitWebDAVShareChange(events.LevelInfo, id, "removed", nil)
	return nil
}

// EnableShare symlinks an already-rendered vhost fragment into vhostDir and
// reloads nginx.
func (m *Manager) EnableShare(ctx context.Context, id string) error {
	lock := m.shareLock(id)
	lock.Lock()
	defer lock.Unlock()

	availablePath := filepath.Join(m.sitesAvailableDir, confFileName(id))
	if _, err := os.Stat(availablePath); os.IsNotExist(err) {
		return errors.New(errors.WebDAVShareNotFound, "webdav share not found").WithMetadata("id", id)
	}

	enabledPath := filepath.Join(m.vhostDir, confFileName(id))
	if _, err := os.Lstat(enabledPath); os.IsNotExist(err) {
		if err := os.Symlink(availablePath, enabledPath); err != nil {
			return errors.Wrap(err, errors.WebDAVInternalError).WithMetadata("operation", "enable_share")
		}
	}

	if err := m.reload(ctx); err != nil {
		return err
	}
	events.EmitWebDAVShareChange(events.LevelInfo, id, "enabled", nil)
	return nil
}

// DisableShare removes a share's sites-enabled symlink (leaving the
// rendered fragment intact) and reloads nginx.
func (m *Manager) DisableShare(ctx context.Context, id string) error {
	lock := m.shareLock(id)
	lock.Lock()
	defer lock.Unlock()

	enabledPath := filepath.Join(m.vhostDir, confFileName(id))
	if err := os.Remove(enabledPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.WebDAVInternalError).WithMetadata("operation", "disable_share")
	}

	if err := m.reload(ctx); err != nil {
		return err
	}
	events.EmitWebDAVShareChange(events.LevelInfo, id, "disabled", nil)
	return nil
}

// applyShare executes the 7-step apply protocol from spec.md §4.6: render,
// backup, atomic write, ensure symlink, ensure htpasswd, validate (rollback
// on failure), reload (rollback on failure).
func (m *Manager) applyShare(ctx context.Context, s *Share) error {
	lock := m.shareLock(s.ID)
	lock.Lock()
	defer lock.Unlock()

	availablePath := filepath.Join(m.sitesAvailableDir, confFileName(s.ID))
	enabledPath := filepath.Join(m.vhostDir, confFileName(s.ID))
	htpasswdPath := filepath.Join(m.htpasswdDir, htpasswdFileName(s.ID))

	// Step 1: render.
	text := renderVhost(s, m.htpasswdDir, m.clientBodyTempDir)

	// Step 2+3: backup (if present) then atomic write, via the shared
	// config-file writer (internal/services/config.ServiceConfigManager),
	// whose WriteFile already backs up to path+".bak" before renaming in.
	if err := m.cfgMgr.WriteFile(availablePath, []byte(text), 0644); err != nil {
		return errors.Wrap(err, errors.WebDAVRenderFailed).WithMetadata("share", s.ID)
	}

	// Step 4: ensure symlink, only if the share is enabled.
	symlinkCreated := false
	if s.Enabled {
		if _, err := os.Lstat(enabledPath); os.IsNotExist(err) {
			if err := os.Symlink(availablePath, enabledPath); err != nil {
				_ = m.cfgMgr.Rollback(availablePath)
				return errors.Wrap(err, errors.WebDAVInternalError).WithMetadata("operation", "symlink")
			}
			symlinkCreated = true
		}
	}

	// Step 5: ensure htpasswd file exists for basic/digest auth.
	htpasswdCreated := false
	if s.AuthMode == AuthBasic || s.AuthMode == AuthDigest {
		if _, err := os.Stat(htpasswdPath); os.IsNotExist(err) {
			if err := os.WriteFile(htpasswdPath, nil, 0640); err != nil {
				m.rollbackApply(availablePath, enabledPath, htpasswdPath, symlinkCreated, false)
				return errors.Wrap(err, errors.WebDAVHtpasswdFailed).WithMetadata("share", s.ID)
			}
			htpasswdCreated = true
		}
	}

	// Step 6: validate.
	if err := m.testNginxConfig(ctx); err != nil {
		m.rollbackApply(availablePath, enabledPath, htpasswdPath, symlinkCreated, htpasswdCreated)
		return err
	}

	// Step 7: reload.
	if err := m.reload(ctx); err != nil {
		m.rollbackApply(availablePath, enabledPath, htpasswdPath, symlinkCreated, htpasswdCreated)
		return err
	}

	return nil
}

func (m *Manager) rollbackApply(availablePath, enabledPath, htpasswdPath string, symlinkCreated, htpasswdCreated bool) {
	if err := m.cfgMgr.Rollback(availablePath); err != nil {
		m.logger.Warn("Failed to roll back webdav vhost fragment", "path", availablePath, "err", err)
	}
	if symlinkCreated {
		_ = os.Remove(enabledPath)
	}
	if htpasswdCreated {
		_ = os.Remove(htpasswdPath)
	}
}

// WriteFullConfig performs full reconciliation: every existing webdav-*.conf
// is backed up under a timestamped directory and removed, then one is
// rendered fresh for every currently-enabled share. Each share goes through
// the full apply, with its own validate and reload; a last validate+reload
// closes the pass.
func (m *Manager) WriteFullConfig(ctx context.Context, shares []*Share) error {
	m.nginxMu.Lock()
	backupDir := filepath.Join(m.sitesAvailableDir, fmt.Sprintf("backup.%d", time.Now().Unix()))
	m.nginxMu.Unlock()

	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return errors.Wrap(err, errors.WebDAVInternalError).WithMetadata("operation", "write_full_config")
	}

	existing, err := filepath.Glob(filepath.Join(m.sitesAvailableDir, confFilePrefix+"*"+confFileSuffix))
	if err != nil {
		return errors.Wrap(err, errors.WebDAVInternalError)
	}
	for _, f := range existing {
		base := filepath.Base(f)
		_ = os.Rename(f, filepath.Join(backupDir, base))
		_ = os.Remove(filepath.Join(m.vhostDir, base))
	}

	for _, s := range shares {
		if !s.Enabled {
			continue
		}
		if err := m.applyShare(ctx, s); err != nil {
			return err
		}
	}

	if err := m.testNginxConfig(ctx); err != nil {
		return err
	}
	return m.reload(ctx)
}

// testNginxConfig runs "nginx -t", returning its stderr verbatim on failure
// wrapped as a Validation-class error, per spec.md §4.6.
func (m *Manager) testNginxConfig(ctx context.Context) error {
	m.nginxMu.Lock()
	defer m.nginxMu.Unlock()

	if err := command.PrerequisiteMissing(m.nginxBin); err != nil {
		return err
	}
	out, err := m.executor.ExecuteWithCombinedOutput(ctx, m.nginxBin, "-t")
	if err != nil {
		return errors.New(errors.WebDAVValidationFailed, strings.TrimSpace(string(out))).
			WithMetadata("share_phase", "validate")
	}
	return nil
}

// reload issues "nginx -s reload".
func (m *Manager) reload(ctx context.Context) error {
	m.nginxMu.Lock()
	defer m.nginxMu.Unlock()

	if err := command.PrerequisiteMissing(m.nginxBin); err != nil {
		return err
	}
	if _, err := m.executor.ExecuteWithCombinedOutput(ctx, m.nginxBin, "-s", "reload"); err != nil {
		return errors.Wrap(err, errors.WebDAVReloadFailed)
	}
	return nil
}

// AddUser adds or updates a WebDAV user via htpasswd -b, passing -c if the
// file does not yet exist.
func (m *Manager) AddUser(ctx context.Context, shareID, username, password string) error {
	if err := command.PrerequisiteMissing(m.htpasswdBin); err != nil {
		return err
	}
	path := filepath.Join(m.htpasswdDir, htpasswdFileName(shareID))

	args := []string{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		args = append(args, "-c")
	}
	args = append(args, "-b", path, username, password)

	if _, err := m.executor.ExecuteWithCombinedOutput(ctx, m.htpasswdBin, args...); err != nil {
		return errors.Wrap(err, errors.WebDAVHtpasswdFailed).WithMetadata("share", shareID).WithMetadata("user", username)
	}
	return nil
}

// RemoveUser deletes a user from a share's htpasswd file.
func (m *Manager) RemoveUser(ctx context.Context, shareID, username string) error {
	path := filepath.Join(m.htpasswdDir, htpasswdFileName(shareID))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errors.New(errors.WebDAVUserNotFound, "htpasswd file not found").WithMetadata("share", shareID)
	}
	if _, err := m.executor.ExecuteWithCombinedOutput(ctx, m.htpasswdBin, "-D", path, username); err != nil {
		return errors.Wrap(err, errors.WebDAVHtpasswdFailed).WithMetadata("share", shareID).WithMetadata("user", username)
	}
	return nil
}

// UpdatePassword rewrites a user's htpasswd entry.
func (m *Manager) UpdatePassword(ctx context.Context, shareID, username, password string) error {
	path := filepath.Join(m.htpasswdDir, htpasswdFileName(shareID))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errors.New(errors.WebDAVUserNotFound, "htpasswd file not found").WithMetadata("share", shareID)
	}
	if _, err := m.executor.ExecuteWithCombinedOutput(ctx, m.htpasswdBin, "-b", path, username, password); err != nil {
		return errors.Wrap(err, errors.WebDAVHtpasswdFailed).WithMetadata("share", shareID).WithMetadata("user", username)
	}
	return nil
}

// VerifyUser checks a username/password pair with "htpasswd -vb".
func (m *Manager) VerifyUser(ctx context.Context, shareID, username, password string) (bool, error) {
	path := filepath.Join(m.htpasswdDir, htpasswdFileName(shareID))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	_, err := m.executor.ExecuteWithCombinedOutput(ctx, m.htpasswdBin, "-vb", path, username, password)
	return err == nil, nil
}

// ListUsers parses a share's htpasswd file for usernames.
func (m *Manager) ListUsers(ctx context.Context, shareID string) ([]User, error) {
	path := filepath.Join(m.htpasswdDir, htpasswdFileName(shareID))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.WebDAVInternalError)
	}

	var users []User
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name := strings.SplitN(line, ":", 2)[0]
		users = append(users, User{ShareID: shareID, Name: name, Enabled: true})
	}
	return users, nil
}

// GenerateSelfSignedCert produces a cert/key pair via openssl in the nginx
// ssl directory and returns an SSLConfig pointing at the generated files.
func (m *Manager) GenerateSelfSignedCert(ctx context.Context, shareID, commonName string, days int) (*SSLConfig, error) {
	if err := command.PrerequisiteMissing("openssl"); err != nil {
		return nil, err
	}

	certDir := "/etc/nginx/ssl"
	if err := os.MkdirAll(certDir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.WebDAVCertGenerationFailed)
	}

	certPath := filepath.Join(certDir, htpasswdFileName(shareID)+".crt")
	keyPath := filepath.Join(certDir, htpasswdFileName(shareID)+".key")

	_, err := m.executor.ExecuteWithCombinedOutput(ctx, "openssl", "req", "-x509", "-nodes",
		"-days", fmt.Sprintf("%d", days), "-newkey", "rsa:2048",
		"-keyout", keyPath, "-out", certPath, "-subj", "/CN="+commonName)
	if err != nil {
		return nil, errors.Wrap(err, errors.WebDAVCertGenerationFailed)
	}

	return &SSLConfig{
		Enabled:        true,
		Certificate:    certPath,
		CertificateKey: keyPath,
		HSTSEnabled:    false,
		MinTLSVersion:  "TLSv1.2",
	}, nil
}

// GenerateLetsEncryptCert drives certbot in nginx mode and returns an
// SSLConfig referencing the standard Let's Encrypt layout.
func (m *Manager) GenerateLetsEncryptCert(ctx context.Context, domain, email string) (*SSLConfig, error) {
	if err := command.PrerequisiteMissing("certbot"); err != nil {
		return nil, err
	}

	_, err := m.executor.ExecuteWithCombinedOutput(ctx, "certbot", "certonly", "--nginx",
		"-d", domain, "--email", email, "--agree-tos", "--non-interactive")
	if err != nil {
		return nil, errors.Wrap(err, errors.WebDAVCertGenerationFailed)
	}

	base := "/etc/letsencrypt/live/" + domain
	return &SSLConfig{
		Enabled:        true,
		Certificate:    base + "/fullchain.pem",
		CertificateKey: base + "/privkey.pem",
		CAChain:        base + "/chain.pem",
		HSTSEnabled:    true,
		HSTSMaxAge:     31536000,
		MinTLSVersion:  "TLSv1.2",
	}, nil
}

// GetStatus reports nginx's running state, module availability, and share
// counts observed from the filesystem.
func (m *Manager) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{NginxVersion: "unknown"}

	if _, err := m.executor.ExecuteWithCombinedOutput(ctx, "pgrep", "-x", filepath.Base(m.nginxBin)); err == nil {
		status.NginxRunning = true
	}

	if out, err := m.executor.ExecuteWithCombinedOutput(ctx, m.nginxBin, "-v"); err == nil {
		if parts := strings.SplitN(string(out), "/", 2); len(parts) == 2 {
			status.NginxVersion = strings.TrimSpace(parts[1])
		}
	}

	if out, err := m.executor.ExecuteWithCombinedOutput(ctx, m.nginxBin, "-V"); err == nil {
		text := string(out)
		status.DavModuleLoaded = strings.Contains(text, "http_dav_module")
		status.DavExtLoaded = strings.Contains(text, "dav_ext")
	}

	files, _ := filepath.Glob(filepath.Join(m.vhostDir, confFilePrefix+"*"+confFileSuffix))
	status.ConfiguredShares = len(files)
	for _, f := range files {
		if data, err := os.ReadFile(f); err == nil && strings.Contains(string(data), "ssl_certificate") {
			status.SSLEnabledShares++
		}
	}

	return status, nil
}
