// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"os"
	"runtime"
	"time"

	"github.com/stratastor/horcrux/internal/constants"
)

// TYPE-SAFE STRUCTURED EVENT EMISSION FUNCTIONS
//
// Each Emit* function builds a small JSON payload and hands it to the
// global event bus. Unlike the Toggle-backed build this replaces, there
// is no remote control plane to address events to - they are just
// appended to the local sink for the node's own audit trail.

// System Events

type systemStartupPayload struct {
	StartupTime time.Time         `json:"startupTime"`
	StartupType string            `json:"startupType"` // "initial_startup", "restart", "reconnect"
	Version     string            `json:"version"`
	SystemInfo  map[string]string `json:"systemInfo"`
}

// EmitSystemStartup emits a system startup event with auto-populated fields.
func EmitSystemStartup(startupType string) {
	hostname, _ := os.Hostname()
	payload := systemStartupPayload{
		StartupTime: time.Now(),
		StartupType: startupType,
		Version:     constants.HorcruxVersion,
		SystemInfo: map[string]string{
			"os":       runtime.GOOS,
			"arch":     runtime.GOARCH,
			"hostname": hostname,
		},
	}
	emitStructuredEvent("system.startup", LevelInfo, CategorySystem, "horcrux.system", payload, nil)
}

type systemShutdownPayload struct {
	Reason string `json:"reason"`
}

// EmitSystemShutdown emits a system shutdown event.
func EmitSystemShutdown(reason string, metadata map[string]string) {
	emitStructuredEvent("system.shutdown", LevelInfo, CategorySystem, "horcrux.system",
		systemShutdownPayload{Reason: reason}, metadata)
}

type systemConfigChangePayload struct {
	ConfigSection string   `json:"configSection"`
	ChangedKeys   []string `json:"changedKeys"`
	Operation     string   `json:"operation"`
}

// EmitSystemConfigChange emits a config-file mutation event.
func EmitSystemConfigChange(configSection string, changedKeys []string, operation string, metadata map[string]string) {
	emitStructuredEvent("system.config_change", LevelInfo, CategorySystem, "horcrux.system",
		systemConfigChangePayload{ConfigSection: configSection, ChangedKeys: changedKeys, Operation: operation}, metadata)
}

// Domain (AD join/leave) Events

type domainEventPayload struct {
	Realm      string `json:"realm"`
	Workgroup  string `json:"workgroup"`
	DomainName string `json:"domainName,omitempty"`
}

// EmitDomainJoin emits an AD join outcome event.
func EmitDomainJoin(level EventLevel, realm, workgroup string, metadata map[string]string) {
	emitStructuredEvent("domain.join", level, CategoryDomain, "horcrux.domain",
		domainEventPayload{Realm: realm, Workgroup: workgroup}, metadata)
}

// EmitDomainLeave emits an AD leave outcome event.
func EmitDomainLeave(level EventLevel, realm string, metadata map[string]string) {
	emitStructuredEvent("domain.leave", level, CategoryDomain, "horcrux.domain",
		domainEventPayload{Realm: realm}, metadata)
}

// Service Events

type serviceStatusPayload struct {
	ServiceName string `json:"serviceName"`
	Status      string `json:"status"`
}

// EmitServiceStatus emits a unit status-change event for a dependent daemon
// (winbind, smbd, nginx).
func EmitServiceStatus(level EventLevel, serviceName, status string, metadata map[string]string) {
	emitStructuredEvent("service.status", level, CategoryService, "horcrux.service-manager",
		serviceStatusPayload{ServiceName: serviceName, Status: status}, metadata)
}

// WebDAV Events

type webdavSharePayload struct {
	ShareName string `json:"shareName"`
	Operation string `json:"operation"` // "created", "updated", "removed", "enabled", "disabled"
}

// EmitWebDAVShareChange emits a WebDAV virtual-host mutation event.
func EmitWebDAVShareChange(level EventLevel, shareName, operation string, metadata map[string]string) {
	emitStructuredEvent("webdav.share_change", level, CategoryWebDAV, "horcrux.webdav",
		webdavSharePayload{ShareName: shareName, Operation: operation}, metadata)
}

// Scheduler Events

type schedulerJobPayload struct {
	JobID     string `json:"jobId"`
	JobName   string `json:"jobName"`
	Kind      string `json:"kind"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Triggered string `json:"triggered"` // "cron" | "run_now"
}

// EmitSchedulerJobRun emits a scheduled job's run outcome.
func EmitSchedulerJobRun(level EventLevel, jobID, jobName, kind string, success bool, runErr string, triggered string) {
	emitStructuredEvent("scheduler.job_run", level, CategoryScheduler, "horcrux.scheduler",
		schedulerJobPayload{JobID: jobID, JobName: jobName, Kind: kind, Success: success, Error: runErr, Triggered: triggered}, nil)
}

// emitStructuredEvent is a thin wrapper over emitEvent for the typed
// Emit* functions above.
func emitStructuredEvent(eventType string, level EventLevel, category EventCategory, source string, payload interface{}, metadata map[string]string) {
	emitEvent(eventType, level, category, source, payload, metadata)
}
