// Copyright 2024 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

var (
	configDir   string // Directory for configuration files
	webdavDir   string // Directory for WebDAV per-share sidecars + vhost fragments
	keysDir     string // Directory for keys
	sshDir      string // Directory for SSH configurations
	eventsDir   string // Directory for event logs
	schedulerDir string // Directory for scheduled job state
)

func init() {
	if os.Geteuid() == 0 {
		configDir = "/etc/horcrux"
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(fmt.Sprintf("failed to get home directory: %v", err))
		}
		configDir = filepath.Join(homeDir, ".horcrux")
	}

	webdavDir = filepath.Join(configDir, "webdav")
	keysDir = filepath.Join(configDir, "keys")
	sshDir = filepath.Join(keysDir, "ssh")
	eventsDir = filepath.Join(configDir, "events")
	schedulerDir = filepath.Join(configDir, "scheduler")

	if err := EnsureDirectories(); err != nil {
		panic(fmt.Sprintf("failed to ensure configuration directories: %v", err))
	}
}

// GetConfigDir returns the appropriate configuration directory.
// If running as root, it returns the system config directory,
// otherwise the user config directory.
func GetConfigDir() string {
	return configDir
}

// GetWebDAVDir returns the directory for WebDAV share sidecars and vhost fragments
func GetWebDAVDir() string {
	return webdavDir
}

// GetKeysDir returns the directory for keys
func GetKeysDir() string {
	return keysDir
}

// GetSSHDir returns the directory for SSH configurations
func GetSSHDir() string {
	return sshDir
}

// GetEventsDir returns the directory for event logs
func GetEventsDir() string {
	return eventsDir
}

// GetSchedulerDir returns the directory for scheduled job state
func GetSchedulerDir() string {
	return schedulerDir
}

// EnsureDirectories creates necessary directories if they do not exist
func EnsureDirectories() error {
	dirs := []string{
		configDir,
		webdavDir,
		keysDir,
		sshDir,
		eventsDir,
		schedulerDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
