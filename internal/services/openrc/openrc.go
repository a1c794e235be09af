// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package openrc provides service lifecycle management for hosts running
// OpenRC (Alpine-based NAS images) instead of systemd, implementing the
// same shape as internal/services/systemd so both can sit behind
// internal/services/initsystem.Manager.
package openrc

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/stratastor/horcrux/internal/command"
	"github.com/stratastor/logger"
)

// Client provides an OpenRC service management client
type Client struct {
	logger      logger.Logger
	rcServiceBin string
	rcUpdateBin  string
}

// NewClient creates a new OpenRC client
func NewClient(log logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	rcServiceBin, err := exec.LookPath("rc-service")
	if err != nil {
		return nil, fmt.Errorf("rc-service is not available or not in PATH: %w", err)
	}

	rcUpdateBin, err := exec.LookPath("rc-update")
	if err != nil {
		return nil, fmt.Errorf("rc-update is not available or not in PATH: %w", err)
	}

	return &Client{
		logger:       log,
		rcServiceBin: rcServiceBin,
		rcUpdateBin:  rcUpdateBin,
	}, nil
}

func (c *Client) Kind() string { return "openrc" }

// Start starts an OpenRC service
func (c *Client) Start(ctx context.Context, unit string) error {
	_, err := command.ExecCommand(ctx, c.logger, "sudo", c.rcServiceBin, unit, "start")
	if err != nil {
		return fmt.Errorf("failed to start service %s: %w", unit, err)
	}
	return nil
}

// Stop stops an OpenRC service
func (c *Client) Stop(ctx context.Context, unit string) error {
	_, err := command.ExecCommand(ctx, c.logger, "sudo", c.rcServiceBin, unit, "stop")
	if err != nil {
		return fmt.Errorf("failed to stop service %s: %w", unit, err)
	}
	return nil
}

// Restart restarts an OpenRC service
func (c *Client) Restart(ctx context.Context, unit string) error {
	_, err := command.ExecCommand(ctx, c.logger, "sudo", c.rcServiceBin, unit, "restart")
	if err != nil {
		return fmt.Errorf("failed to restart service %s: %w", unit, err)
	}
	return nil
}

// Reload reloads an OpenRC service's configuration, falling back to a
// restart if the service script doesn't support the reload verb — mirrors
// the systemd backend's same fallback behavior.
func (c *Client) Reload(ctx context.Context, unit string) error {
	_, err := command.ExecCommand(ctx, c.logger, "sudo", c.rcServiceBin, unit, "reload")
	if err != nil {
		c.logger.Warn("Service reload failed, attempting restart", "service", unit, "err", err)
		return c.Restart(ctx, unit)
	}
	return nil
}

// Enable adds the service to the default OpenRC runlevel
func (c *Client) Enable(ctx context.Context, unit string) error {
	_, err := command.ExecCommand(ctx, c.logger, "sudo", c.rcUpdateBin, "add", unit, "default")
	if err != nil {
		return fmt.Errorf("failed to enable service %s: %w", unit, err)
	}
	return nil
}

// Disable removes the service from the default OpenRC runlevel
func (c *Client) Disable(ctx context.Context, unit string) error {
	_, err := command.ExecCommand(ctx, c.logger, "sudo", c.rcUpdateBin, "del", unit, "default")
	if err != nil {
		return fmt.Errorf("failed to disable service %s: %w", unit, err)
	}
	return nil
}

// Exists checks whether an init script for unit is installed.
func (c *Client) Exists(ctx context.Context, unit string) (bool, error) {
	_, err := command.ExecCommand(ctx, c.logger, "test", "-x", "/etc/init.d/"+unit)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// IsActive reports the service's state. OpenRC's "status" verb exits 0 for
// started, 3 for stopped, and other codes for states rc-service can't
// characterize — those map to StateUnknown rather than being guessed at.
func (c *Client) IsActive(ctx context.Context, unit string) (ServiceState, error) {
	output, err := command.ExecCommand(ctx, c.logger, c.rcServiceBin, unit, "status")
	text := strings.ToLower(string(output))

	switch {
	case err == nil && strings.Contains(text, "started"):
		return StateActive, nil
	case strings.Contains(text, "stopped"):
		return StateInactive, nil
	case strings.Contains(text, "crashed"):
		return StateFailed, nil
	case err != nil:
		c.logger.Debug("Could not determine OpenRC service state", "service", unit, "output", text, "err", err)
		return StateUnknown, nil
	default:
		return StateUnknown, nil
	}
}

// ServiceState mirrors initsystem.State without importing that package,
// which would create an import cycle (initsystem imports openrc to
// construct a Client). initsystem's openrcAdapter maps each value onto
// initsystem.State with an explicit switch.
type ServiceState int

const (
	StateUnknown ServiceState = iota
	StateActive
	StateInactive
	StateFailed
)
