// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package privilege

// Config contains configuration for the privilege operations module
type Config struct {
	// AllowedPaths defines paths that can be accessed with sudo
	AllowedPaths []string `yaml:"allowed_paths" json:"allowed_paths"`
	
	// AllowedCommands lists commands for sudo execution. It is not enforced:
	// OperationsFactory passes only AllowedPaths on, and
	// SudoFileOperations.ExecuteCommand runs any command it is given.
	AllowedCommands []string `yaml:"allowed_commands" json:"allowed_commands"`
}

// DefaultConfig returns the baseline configuration shared by every caller:
// the handful of system-wide files every component may touch (hosts,
// resolv.conf, krb5.conf) and systemctl, needed by any unit restart.
// Callers append their own component-specific paths and commands with
// NewConfig rather than editing this list.
func DefaultConfig() *Config {
	return &Config{
		AllowedPaths: []string{
			"/etc/hosts",
			"/etc/resolv.conf",
			"/etc/krb5.conf",
		},
		AllowedCommands: []string{
			"systemctl",
		},
	}
}

// NewConfig returns DefaultConfig extended with component-specific allowed
// paths and commands, e.g. a WebDAV realizer's nginx config tree and
// nginx/htpasswd binaries, or an AD controller's samba config tree and
// net/wbinfo binaries.
func NewConfig(extraPaths, extraCommands []string) *Config {
	cfg := DefaultConfig()
	cfg.AllowedPaths = append(cfg.AllowedPaths, extraPaths...)
	cfg.AllowedCommands = append(cfg.AllowedCommands, extraCommands...)
	return cfg
}