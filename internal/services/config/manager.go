// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/stratastor/logger"
)

// ConfigTemplate represents a configuration template that can be rendered
type ConfigTemplate struct {
	Name         string
	TemplatePath string // File path (optional if Content provided)
	Content      string // Template content (used instead of TemplatePath)
	OutputPath   string
	Permissions  os.FileMode
	BackupPath   string // Optional path for backup
}

// PrivilegedWriter is the subset of internal/system/privilege's
// FileOperations that ServiceConfigManager falls back to when a direct,
// unprivileged write is denied — e.g. writing /etc/samba/smb.conf while
// running as a non-root service account.
type PrivilegedWriter interface {
	WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error
}

// ServiceConfigManager handles configuration updates for services
type ServiceConfigManager struct {
	logger         logger.Logger
	templates      map[string]*ConfigTemplate
	stateCallbacks []StateChangeCallback
	privileged     PrivilegedWriter
}

// StateChangeCallback is called when a configuration change occurs
type StateChangeCallback func(ctx context.Context, serviceName string, state ServiceState) error

// ServiceState represents the state of a service configuration
type ServiceState struct {
	ServiceName string
	ConfigPath  string
	UpdatedAt   time.Time
	Status      string // e.g. "updated", "failed", "unchanged"
}

// NewServiceConfigManager creates a new service configuration manager
func NewServiceConfigManager(logger logger.Logger) *ServiceConfigManager {
	return &ServiceConfigManager{
		logger:    logger,
		templates: make(map[string]*ConfigTemplate),
	}
}

// SetPrivilegedWriter installs a fallback used by WriteFile when a direct
// write fails with a permission error. Passing nil (the default) disables
// the fallback, so an unprivileged process simply fails the write.
func (m *ServiceConfigManager) SetPrivilegedWriter(w PrivilegedWriter) {
	m.privileged = w
}

// RegisterTemplate registers a configuration template
func (m *ServiceConfigManager) RegisterTemplate(name string, template *ConfigTemplate) {
	m.templates[name] = template
}

// RegisterStateCallback registers a callback for state changes
func (m *ServiceConfigManager) RegisterStateCallback(callback StateChangeCallback) {
	m.stateCallbacks = append(m.stateCallbacks, callback)
}

// UpdateConfig renders a registered template with data and atomically
// writes it to the template's OutputPath.
func (m *ServiceConfigManager) UpdateConfig(
	ctx context.Context,
	templateName string,
	data interface{},
) error {
	tmpl, ok := m.templates[templateName]
	if !ok {
		return fmt.Errorf("template not found: %s", templateName)
	}

	var templateContent string
	if tmpl.Content != "" {
		templateContent = tmpl.Content
	} else {
		content, err := os.ReadFile(tmpl.TemplatePath)
		if err != nil {
			return fmt.Errorf("failed to read template file: %w", err)
		}
		templateContent = string(content)
	}

	parsedTemplate, err := template.New(tmpl.Name).Parse(templateContent)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	var output bytes.Buffer
	if err := parsedTemplate.Execute(&output, data); err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	if err := m.WriteFile(tmpl.OutputPath, output.Bytes(), tmpl.Permissions); err != nil {
		return err
	}

	state := ServiceState{
		ServiceName: tmpl.Name,
		ConfigPath:  tmpl.OutputPath,
		UpdatedAt:   time.Now(),
		Status:      "updated",
	}
	for _, callback := range m.stateCallbacks {
		if err := callback(ctx, tmpl.Name, state); err != nil {
			m.logger.Warn("Failed to notify state change", "template", templateName, "err", err)
		}
	}

	m.logger.Info("Updated configuration", "template", templateName, "path", tmpl.OutputPath)
	return nil
}

// backupSuffix is appended to a config file's path to form its rollback copy.
const backupSuffix = ".bak"

// WriteFile atomically replaces path's contents: it writes to a temp file
// in the same directory, fsyncs it, backs up any existing file to
// path+".bak", then renames the temp file into place and fsyncs the
// containing directory. A crash at any point before the final rename
// leaves the original file untouched; a crash after leaves either the old
// or the new content, never a partial write.
func (m *ServiceConfigManager) WriteFile(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		if os.IsPermission(err) && m.privileged != nil {
			return m.writeViaPrivileged(path, content, perm, err)
		}
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := m.backup(path); err != nil {
		m.logger.Warn("Failed to back up existing config before write", "path", path, "err", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		if os.IsPermission(err) && m.privileged != nil {
			return m.writeViaPrivileged(path, content, perm, err)
		}
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	// Best-effort cleanup if we bail before the rename below.
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if os.IsPermission(err) && m.privileged != nil {
			return m.writeViaPrivileged(path, content, perm, err)
		}
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}

	if dirFile, err := os.Open(dir); err == nil {
		_ = dirFile.Sync()
		dirFile.Close()
	}

	return nil
}

// writeViaPrivileged hands the whole write off to the privileged fallback
// after a direct, unprivileged attempt failed with denyErr. It skips the
// temp-file-plus-rename dance above since the fallback (shelling out to
// sudo cp) has no access to a file descriptor already open in this
// process's unprivileged context.
func (m *ServiceConfigManager) writeViaPrivileged(path string, content []byte, perm os.FileMode, denyErr error) error {
	m.logger.Debug("Direct write denied, falling back to privileged writer", "path", path, "err", denyErr)
	if err := m.privileged.WriteFile(context.Background(), path, content, perm); err != nil {
		return fmt.Errorf("privileged write failed after direct write was denied (%v): %w", denyErr, err)
	}
	return nil
}

// ReadCurrent reads the current contents of a config file, returning an
// empty slice (not an error) if it doesn't exist yet.
func (m *ServiceConfigManager) ReadCurrent(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return content, err
}

// backup copies path to path+backupSuffix if path exists.
func (m *ServiceConfigManager) backup(path string) error {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file to back up: %w", err)
	}

	info, err := os.Stat(path)
	perm := os.FileMode(0644)
	if err == nil {
		perm = info.Mode()
	}

	if err := os.WriteFile(path+backupSuffix, content, perm); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Rollback restores path from its .bak copy, written by the most recent
// WriteFile call. If no backup exists (the file didn't exist before that
// write), the file is removed instead, to undo the write entirely.
func (m *ServiceConfigManager) Rollback(path string) error {
	backupPath := path + backupSuffix

	content, err := os.ReadFile(backupPath)
	if os.IsNotExist(err) {
		// The write created this file from nothing; undo by removing it.
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("failed to remove file with no backup: %w", rmErr)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}

	info, statErr := os.Stat(backupPath)
	perm := os.FileMode(0644)
	if statErr == nil {
		perm = info.Mode()
	}

	return m.WriteFile(path, content, perm)
}
