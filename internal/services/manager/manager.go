// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/stratastor/logger"

	"github.com/stratastor/horcrux/internal/command"
	"github.com/stratastor/horcrux/internal/events"
	"github.com/stratastor/horcrux/internal/scheduler"
	"github.com/stratastor/horcrux/internal/services/domain"
	"github.com/stratastor/horcrux/internal/services/initsystem"
	"github.com/stratastor/horcrux/internal/services/webdav"
)

// unitNames lists the system daemons the realizer depends on; their
// lifecycle is driven through initsystem.Manager rather than the
// Service/ServiceStatus abstraction, since they are units, not Horcrux
// components.
var unitNames = []string{"winbind", "smbd", "nginx"}

// ServiceManager owns the long-lived, process-wide handles to each
// component (AD controller, WebDAV realizer, init-system adapter) and
// exposes their lifecycle through a single surface for cmd/serve.
type ServiceManager struct {
	logger logger.Logger

	domain    *domain.Client
	webdav    *webdav.Manager
	init      initsystem.Manager
	scheduler *scheduler.Scheduler

	mu sync.RWMutex
}

// NewServiceManager constructs every component and keeps the init-system
// adapter detected on the host for unit status and restarts; the
// components themselves are not handed the adapter.
func NewServiceManager(log logger.Logger) (*ServiceManager, error) {
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	initMgr, err := initsystem.Detect(log)
	if err != nil {
		log.Warn("Failed to detect init system", "err", err)
	}

	domainClient, err := domain.NewClient(log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AD domain client: %w", err)
	}

	webdavMgr, err := webdav.NewManager(log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize webdav manager: %w", err)
	}

	sched, err := scheduler.New(log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	for kind, fn := range scheduler.DefaultExecutors(command.NewCommandExecutor(true), domainClient) {
		sched.RegisterExecutor(kind, fn)
	}

	return &ServiceManager{
		logger:    log,
		domain:    domainClient,
		webdav:    webdavMgr,
		init:      initMgr,
		scheduler: sched,
	}, nil
}

// Domain returns the AD domain membership controller (C5).
func (m *ServiceManager) Domain() *domain.Client {
	return m.domain
}

// WebDAV returns the WebDAV share realizer (C6).
func (m *ServiceManager) WebDAV() *webdav.Manager {
	return m.webdav
}

// Scheduler returns the job scheduler (C7).
func (m *ServiceManager) Scheduler() *scheduler.Scheduler {
	return m.scheduler
}

// UnitStatuses reports the init-system state of every daemon the
// components above depend on (winbind, smbd, nginx).
func (m *ServiceManager) UnitStatuses(ctx context.Context) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make(map[string]string, len(unitNames))
	if m.init == nil {
		for _, unit := range unitNames {
			statuses[unit] = "unknown"
		}
		return statuses
	}

	for _, unit := range unitNames {
		state, err := m.init.IsActive(ctx, unit)
		if err != nil {
			statuses[unit] = fmt.Sprintf("error: %v", err)
			continue
		}
		statuses[unit] = state.String()
	}
	return statuses
}

// RestartUnit restarts one of the daemons backing this host's services.
func (m *ServiceManager) RestartUnit(ctx context.Context, unit string) error {
	if m.init == nil {
		return fmt.Errorf("no init system detected")
	}
	if err := m.init.Restart(ctx, unit); err != nil {
		events.EmitServiceStatus(events.LevelError, unit, "restart_failed", map[string]string{"error": err.Error()})
		return err
	}
	events.EmitServiceStatus(events.LevelInfo, unit, "restarted", nil)
	return nil
}

// Start begins cron dispatch for every enabled scheduled job.
func (m *ServiceManager) Start(ctx context.Context) error {
	return m.scheduler.Start(ctx)
}

// Close stops the scheduler, draining in-flight job runs, and releases
// the domain client's optional LDAP accelerator connection.
func (m *ServiceManager) Close() error {
	m.domain.Close()
	return m.scheduler.Stop(context.Background())
}
