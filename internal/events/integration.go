// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/stratastor/logger"
	"github.com/stratastor/horcrux/config"
	"github.com/stratastor/horcrux/pkg/lifecycle"
)

var (
	globalEventBus *EventBus
	globalMu       sync.RWMutex
	initialized    bool
)

// Initialize sets up the global event system, sinking batches to a local
// JSONL file under the configured events directory.
func Initialize(ctx context.Context, l logger.Logger) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if initialized {
		return nil
	}

	cfg := GetEventConfig()
	sinkPath := filepath.Join(config.GetEventsDir(), "events.jsonl")
	globalEventBus = NewEventBus(sinkPath, cfg, l)

	if err := globalEventBus.Start(ctx); err != nil {
		return err
	}

	// TODO: lifecycle.RegisterShutdownHook only accepts func(), not
	// func(context.Context), so shutdown runs with context.Background()
	// rather than a timeout-bound context.
	lifecycle.RegisterShutdownHook(func() {
		if err := Shutdown(context.Background()); err != nil {
			l.Error("Failed to shutdown event system", "error", err)
		}
	})

	initialized = true
	l.Info("Event system initialized successfully")
	return nil
}

// Shutdown gracefully shuts down the event system
func Shutdown(ctx context.Context) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if !initialized || globalEventBus == nil {
		return nil
	}

	err := globalEventBus.Shutdown(ctx)
	initialized = false
	return err
}

// EmitSystemEvent emits a system-level event
func EmitSystemEvent(eventType string, level EventLevel, payload interface{}, metadata map[string]string) {
	emitEvent(eventType, level, CategorySystem, "system", payload, metadata)
}

// EmitStorageEvent emits a storage-related event
func EmitStorageEvent(eventType string, level EventLevel, source string, payload interface{}, metadata map[string]string) {
	emitEvent(eventType, level, CategoryStorage, source, payload, metadata)
}

// EmitNetworkEvent emits a network-related event
func EmitNetworkEvent(eventType string, level EventLevel, source string, payload interface{}, metadata map[string]string) {
	emitEvent(eventType, level, CategoryNetwork, source, payload, metadata)
}

// EmitSecurityEvent emits a security-related event
func EmitSecurityEvent(eventType string, level EventLevel, source string, payload interface{}, metadata map[string]string) {
	emitEvent(eventType, level, CategorySecurity, source, payload, metadata)
}

// EmitServiceEvent emits a service-related event
func EmitServiceEvent(eventType string, level EventLevel, source string, payload interface{}, metadata map[string]string) {
	emitEvent(eventType, level, CategoryService, source, payload, metadata)
}

// Emit emits a generic event
func Emit(eventType string, level EventLevel, category EventCategory, source string, payload interface{}, metadata map[string]string) {
	emitEvent(eventType, level, category, source, payload, metadata)
}

// emitEvent is the internal implementation for emitting events
func emitEvent(eventType string, level EventLevel, category EventCategory, source string, payload interface{}, metadata map[string]string) {
	globalMu.RLock()
	bus := globalEventBus
	globalMu.RUnlock()

	if bus == nil {
		// Events not initialized - silently ignore
		return
	}

	var payloadBytes []byte
	if payload != nil {
		var err error
		payloadBytes, err = json.Marshal(payload)
		if err != nil {
			return
		}
	}

	if metadata == nil {
		metadata = make(map[string]string)
	}

	bus.Emit(eventType, level, category, source, payloadBytes, metadata)
}

// GetStats returns event system statistics
func GetStats() map[string]interface{} {
	globalMu.RLock()
	bus := globalEventBus
	globalMu.RUnlock()

	if bus == nil {
		return map[string]interface{}{
			"initialized": false,
		}
	}

	stats := bus.GetStats()
	stats["initialized"] = true
	return stats
}

// IsInitialized returns whether the event system is initialized
func IsInitialized() bool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return initialized && globalEventBus != nil
}
