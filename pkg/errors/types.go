// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import "net/http"

const (
	DomainConfig    Domain = "CONFIG"
	DomainCommand   Domain = "CMD"
	DomainInit      Domain = "INIT"
	DomainAD        Domain = "AD"
	DomainWebDAV    Domain = "WEBDAV"
	DomainScheduler Domain = "SCHEDULER"
	DomainPrereq    Domain = "PREREQ"
	DomainMisc      Domain = "MISC"
)

// ErrorCode represents unique error identifiers
type ErrorCode int

// Domain represents the subsystem where the error originated
type Domain string

type HorcruxError struct {
	Code    ErrorCode `json:"code"`
	Domain  Domain    `json:"domain"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	HTTPStatus int `json:"-"`

	// Metadata carries additional contextual information that doesn't fit
	// the standard fields but is valuable for logging and API responses:
	// command output, retried-probe names, the wrapped error's own code.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error code ranges:
// 1000-1099: Configuration errors (C3 Config File Writer)
// 1100-1199: Command execution (C1 Process Driver)
// 1200-1299: Init-system abstraction (C2)
// 1300-1399: Active Directory Controller (C5)
// 1400-1499: WebDAV Realizer (C6)
// 1500-1599: Scheduler (C7)
// 1600-1699: Prerequisite Checker (C4)
// 1700-1799: Miscellaneous / general
const (
	// Configuration Errors (1000-1099)
	ConfigNotFound = 1000 + iota
	ConfigInvalid
	ConfigRenderFailed
	ConfigWriteFailed
	ConfigBackupFailed
	ConfigRollbackFailed
	ConfigPermissionDenied
	ConfigTemplateNotFound
	ConfigDirectoryError
)

const (
	// Command Execution (1100-1199)
	CommandNotFound = 1100 + iota
	CommandExecution
	CommandTimeout
	CommandInvalidInput
	CommandPrerequisiteMissing
	CommandSignal
	CommandOutputTruncated
)

const (
	// Init-system abstraction (1200-1299)
	InitServiceNotFound = 1200 + iota
	InitStartFailed
	InitStopFailed
	InitRestartFailed
	InitEnableFailed
	InitDisableFailed
	InitStatusUnknown
	InitUnsupportedSystem
)

const (
	// Active Directory Controller (1300-1399)
	ADConnectFailed = 1300 + iota
	ADSearchFailed
	ADUserNotFound
	ADGroupNotFound
	ADPermissionDenied
	ADInvalidCredentials
	ADInvalidFilter
	ADInvalidBaseDN
	ADInvalidAttribute
	ADInvalidGroup
	ADInvalidUser
	ADCreateUserFailed
	ADUpdateUserFailed
	ADDeleteUserFailed
	ADCreateGroupFailed
	ADUpdateGroupFailed
	ADDeleteGroupFailed
	ADEncodePasswordFailed
	ADSetPasswordFailed
	ADPrerequisiteFailed
	ADAuthenticationFailed
	ADJoinFailed
	ADLeaveFailed
	ADAlreadyJoined
	ADNotJoined
	ADDNSRegisterFailed
	ADKeytabFailed
	ADTrustInvalid
	ADSIDLookupFailed
	ADRotatePasswordFailed
)

const (
	// WebDAV Realizer (1400-1499)
	WebDAVInvalidInput = 1400 + iota
	WebDAVShareNotFound
	WebDAVShareAlreadyExists
	WebDAVRenderFailed
	WebDAVValidationFailed
	WebDAVReloadFailed
	WebDAVHtpasswdFailed
	WebDAVUserNotFound
	WebDAVCertGenerationFailed
	WebDAVLdapConfigInvalid
	WebDAVInternalError
)

const (
	// Scheduler (1500-1599)
	SchedulerInvalidInput = 1500 + iota
	SchedulerJobNotFound
	SchedulerJobAlreadyExists
	SchedulerJobConflict
	SchedulerInvalidCron
	SchedulerDispatchFailed
	SchedulerCancelFailed
	SchedulerHistoryNotFound
	SchedulerUnknownJobKind
)

const (
	// Prerequisite Checker (1600-1699)
	PrereqDNSFailed = 1600 + iota
	PrereqUnreachable
	PrereqTimeSkew
	PrereqBinaryMissing
	PrereqCheckFailed
)

const (
	// Miscellaneous (1700-1799)
	Misc = 1700 + iota
	NotFoundError
	InternalError
	ValidationError
	PermissionDenied
	OperationFailed
)

var errorDefinitions = map[ErrorCode]struct {
	message    string
	domain     Domain
	httpStatus int
}{
	ConfigNotFound:          {"Configuration file not found", DomainConfig, http.StatusNotFound},
	ConfigInvalid:           {"Invalid configuration", DomainConfig, http.StatusBadRequest},
	ConfigRenderFailed:      {"Failed to render configuration template", DomainConfig, http.StatusInternalServerError},
	ConfigWriteFailed:       {"Failed to write configuration file", DomainConfig, http.StatusInternalServerError},
	ConfigBackupFailed:      {"Failed to back up configuration file", DomainConfig, http.StatusInternalServerError},
	ConfigRollbackFailed:    {"Failed to roll back configuration file", DomainConfig, http.StatusInternalServerError},
	ConfigPermissionDenied:  {"Permission denied accessing configuration file", DomainConfig, http.StatusForbidden},
	ConfigTemplateNotFound:  {"Configuration template not found", DomainConfig, http.StatusInternalServerError},
	ConfigDirectoryError:    {"Configuration directory error", DomainConfig, http.StatusInternalServerError},

	CommandNotFound:            {"Command not found", DomainCommand, http.StatusNotFound},
	CommandExecution:           {"Command execution failed", DomainCommand, http.StatusInternalServerError},
	CommandTimeout:             {"Command timed out", DomainCommand, http.StatusGatewayTimeout},
	CommandInvalidInput:        {"Invalid command input", DomainCommand, http.StatusBadRequest},
	CommandPrerequisiteMissing: {"Required binary not found on PATH", DomainCommand, http.StatusFailedDependency},
	CommandSignal:              {"Failed to signal command process", DomainCommand, http.StatusInternalServerError},
	CommandOutputTruncated:     {"Command output exceeded capture limit", DomainCommand, http.StatusInternalServerError},

	InitServiceNotFound:   {"Service unit not found", DomainInit, http.StatusNotFound},
	InitStartFailed:       {"Failed to start service", DomainInit, http.StatusInternalServerError},
	InitStopFailed:        {"Failed to stop service", DomainInit, http.StatusInternalServerError},
	InitRestartFailed:     {"Failed to restart service", DomainInit, http.StatusInternalServerError},
	InitEnableFailed:      {"Failed to enable service", DomainInit, http.StatusInternalServerError},
	InitDisableFailed:     {"Failed to disable service", DomainInit, http.StatusInternalServerError},
	InitStatusUnknown:     {"Unable to determine service status", DomainInit, http.StatusInternalServerError},
	InitUnsupportedSystem: {"No supported init system detected", DomainInit, http.StatusInternalServerError},

	ADConnectFailed:        {"Failed to connect to Active Directory", DomainAD, http.StatusBadGateway},
	ADSearchFailed:         {"Active Directory search failed", DomainAD, http.StatusInternalServerError},
	ADUserNotFound:         {"Active Directory user not found", DomainAD, http.StatusNotFound},
	ADGroupNotFound:        {"Active Directory group not found", DomainAD, http.StatusNotFound},
	ADPermissionDenied:     {"Active Directory permission denied", DomainAD, http.StatusForbidden},
	ADInvalidCredentials:   {"Invalid Active Directory credentials", DomainAD, http.StatusUnauthorized},
	ADInvalidFilter:        {"Invalid Active Directory search filter", DomainAD, http.StatusBadRequest},
	ADInvalidBaseDN:        {"Invalid Active Directory base DN", DomainAD, http.StatusBadRequest},
	ADInvalidAttribute:     {"Invalid Active Directory attribute", DomainAD, http.StatusBadRequest},
	ADInvalidGroup:         {"Invalid Active Directory group", DomainAD, http.StatusBadRequest},
	ADInvalidUser:          {"Invalid Active Directory user", DomainAD, http.StatusBadRequest},
	ADCreateUserFailed:     {"Failed to create Active Directory user", DomainAD, http.StatusInternalServerError},
	ADUpdateUserFailed:     {"Failed to update Active Directory user", DomainAD, http.StatusInternalServerError},
	ADDeleteUserFailed:     {"Failed to delete Active Directory user", DomainAD, http.StatusInternalServerError},
	ADCreateGroupFailed:    {"Failed to create Active Directory group", DomainAD, http.StatusInternalServerError},
	ADUpdateGroupFailed:    {"Failed to update Active Directory group", DomainAD, http.StatusInternalServerError},
	ADDeleteGroupFailed:    {"Failed to delete Active Directory group", DomainAD, http.StatusInternalServerError},
	ADEncodePasswordFailed: {"Failed to encode Active Directory password", DomainAD, http.StatusInternalServerError},
	ADSetPasswordFailed:    {"Failed to set Active Directory password", DomainAD, http.StatusInternalServerError},
	ADPrerequisiteFailed:   {"Domain join prerequisites not satisfied", DomainAD, http.StatusFailedDependency},
	ADAuthenticationFailed: {"Active Directory authentication rejected", DomainAD, http.StatusUnauthorized},
	ADJoinFailed:           {"Domain join failed", DomainAD, http.StatusInternalServerError},
	ADLeaveFailed:          {"Domain leave failed", DomainAD, http.StatusInternalServerError},
	ADAlreadyJoined:        {"Host is already joined to this domain", DomainAD, http.StatusConflict},
	ADNotJoined:            {"Host is not joined to a domain", DomainAD, http.StatusConflict},
	ADDNSRegisterFailed:    {"Failed to register DNS record", DomainAD, http.StatusInternalServerError},
	ADKeytabFailed:         {"Keytab operation failed", DomainAD, http.StatusInternalServerError},
	ADTrustInvalid:         {"Domain trust relationship is invalid", DomainAD, http.StatusInternalServerError},
	ADSIDLookupFailed:      {"SID/name lookup failed", DomainAD, http.StatusNotFound},
	ADRotatePasswordFailed: {"Failed to rotate machine account password", DomainAD, http.StatusInternalServerError},

	WebDAVInvalidInput:         {"Invalid WebDAV share input", DomainWebDAV, http.StatusBadRequest},
	WebDAVShareNotFound:        {"WebDAV share not found", DomainWebDAV, http.StatusNotFound},
	WebDAVShareAlreadyExists:   {"WebDAV share already exists", DomainWebDAV, http.StatusConflict},
	WebDAVRenderFailed:         {"Failed to render WebDAV vhost config", DomainWebDAV, http.StatusInternalServerError},
	WebDAVValidationFailed:     {"nginx configuration test failed", DomainWebDAV, http.StatusUnprocessableEntity},
	WebDAVReloadFailed:         {"Failed to reload nginx", DomainWebDAV, http.StatusInternalServerError},
	WebDAVHtpasswdFailed:       {"htpasswd operation failed", DomainWebDAV, http.StatusInternalServerError},
	WebDAVUserNotFound:         {"WebDAV user not found", DomainWebDAV, http.StatusNotFound},
	WebDAVCertGenerationFailed: {"Certificate generation failed", DomainWebDAV, http.StatusInternalServerError},
	WebDAVLdapConfigInvalid:    {"Invalid WebDAV LDAP auth configuration", DomainWebDAV, http.StatusBadRequest},
	WebDAVInternalError:        {"Internal WebDAV realizer error", DomainWebDAV, http.StatusInternalServerError},

	SchedulerInvalidInput:     {"Invalid scheduled job input", DomainScheduler, http.StatusBadRequest},
	SchedulerJobNotFound:      {"Scheduled job not found", DomainScheduler, http.StatusNotFound},
	SchedulerJobAlreadyExists: {"Scheduled job already exists", DomainScheduler, http.StatusConflict},
	SchedulerJobConflict:      {"Job already has an execution in progress", DomainScheduler, http.StatusConflict},
	SchedulerInvalidCron:      {"Invalid cron expression", DomainScheduler, http.StatusBadRequest},
	SchedulerDispatchFailed:   {"Failed to dispatch scheduled job", DomainScheduler, http.StatusInternalServerError},
	SchedulerCancelFailed:     {"Failed to cancel running job", DomainScheduler, http.StatusInternalServerError},
	SchedulerHistoryNotFound:  {"Job history entry not found", DomainScheduler, http.StatusNotFound},
	SchedulerUnknownJobKind:   {"Unrecognized job kind", DomainScheduler, http.StatusBadRequest},

	PrereqDNSFailed:      {"DNS resolution probe failed", DomainPrereq, http.StatusFailedDependency},
	PrereqUnreachable:    {"Domain controller unreachable", DomainPrereq, http.StatusFailedDependency},
	PrereqTimeSkew:       {"Clock skew exceeds tolerance", DomainPrereq, http.StatusFailedDependency},
	PrereqBinaryMissing:  {"Required binary missing", DomainPrereq, http.StatusFailedDependency},
	PrereqCheckFailed:    {"Prerequisite check failed", DomainPrereq, http.StatusFailedDependency},

	Misc:             {"Miscellaneous error", DomainMisc, http.StatusInternalServerError},
	NotFoundError:    {"Resource not found", DomainMisc, http.StatusNotFound},
	InternalError:    {"Internal error", DomainMisc, http.StatusInternalServerError},
	ValidationError:  {"Validation failed", DomainMisc, http.StatusBadRequest},
	PermissionDenied: {"Permission denied for privileged operation", DomainMisc, http.StatusForbidden},
	OperationFailed:  {"Privileged operation failed", DomainMisc, http.StatusInternalServerError},
}
