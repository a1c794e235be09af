// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package initsystem abstracts service lifecycle management over whichever
// init system the host actually runs — systemd on most distros, OpenRC on
// Alpine-based NAS images. The service manager uses the Manager interface
// for unit status and restarts. The AD controller does not go through it:
// it restarts winbind and chrony by running systemctl itself. The WebDAV
// realizer reloads nginx with `nginx -s reload`.
package initsystem

import (
	"context"
	"fmt"
	"os"

	"github.com/stratastor/horcrux/internal/services/openrc"
	"github.com/stratastor/horcrux/internal/services/systemd"
	"github.com/stratastor/logger"
)

// State is the tri-state result of a service status probe. It is
// deliberately distinct from "inactive": a status check that could not
// determine the service's state (unexpected output, permission error)
// reports Unknown rather than silently claiming the service is down.
type State int

const (
	StateUnknown State = iota
	StateActive
	StateInactive
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Manager is the common service-lifecycle surface every init-system
// backend implements.
type Manager interface {
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
	Reload(ctx context.Context, unit string) error
	Enable(ctx context.Context, unit string) error
	Disable(ctx context.Context, unit string) error
	IsActive(ctx context.Context, unit string) (State, error)
	Exists(ctx context.Context, unit string) (bool, error)
	Kind() string
}

// Detect picks the init system present on this host: systemd if
// /run/systemd/system exists (the documented detection method systemd
// itself recommends), OpenRC otherwise.
func Detect(log logger.Logger) (Manager, error) {
	if _, err := os.Stat("/run/systemd/system"); err == nil {
		client, err := systemd.NewClient(log)
		if err != nil {
			return nil, fmt.Errorf("systemd detected but client init failed: %w", err)
		}
		return systemdAdapter{client}, nil
	}

	client, err := openrc.NewClient(log)
	if err != nil {
		return nil, fmt.Errorf("no supported init system detected: %w", err)
	}
	return openrcAdapter{client}, nil
}

// systemdAdapter maps the Manager interface onto systemd.Client's richer,
// pre-existing method names (StartService/StopService/...).
type systemdAdapter struct {
	*systemd.Client
}

func (a systemdAdapter) Start(ctx context.Context, unit string) error   { return a.StartService(ctx, unit) }
func (a systemdAdapter) Stop(ctx context.Context, unit string) error    { return a.StopService(ctx, unit) }
func (a systemdAdapter) Restart(ctx context.Context, unit string) error { return a.RestartService(ctx, unit) }
func (a systemdAdapter) Reload(ctx context.Context, unit string) error  { return a.ReloadService(ctx, unit) }
func (a systemdAdapter) Enable(ctx context.Context, unit string) error  { return a.EnableService(ctx, unit) }
func (a systemdAdapter) Disable(ctx context.Context, unit string) error { return a.DisableService(ctx, unit) }
func (a systemdAdapter) Exists(ctx context.Context, unit string) (bool, error) {
	return a.IsSystemdService(ctx, unit)
}
func (a systemdAdapter) IsActive(ctx context.Context, unit string) (State, error) {
	status, err := a.GetServiceStatus(ctx, unit)
	if err != nil {
		return StateUnknown, err
	}
	switch status.State {
	case "running":
		return StateActive, nil
	case "stopped":
		return StateInactive, nil
	case "failed":
		return StateFailed, nil
	default:
		return StateUnknown, nil
	}
}
func (a systemdAdapter) Kind() string { return "systemd" }

// openrcAdapter translates openrc.Client's locally-defined state type onto
// the shared Manager interface's State (openrc cannot import this package
// itself, since this package already imports openrc to construct one).
type openrcAdapter struct {
	*openrc.Client
}

func (a openrcAdapter) IsActive(ctx context.Context, unit string) (State, error) {
	s, err := a.Client.IsActive(ctx, unit)
	if err != nil {
		return StateUnknown, err
	}
	switch s {
	case openrc.StateActive:
		return StateActive, nil
	case openrc.StateInactive:
		return StateInactive, nil
	case openrc.StateFailed:
		return StateFailed, nil
	default:
		return StateUnknown, nil
	}
}
