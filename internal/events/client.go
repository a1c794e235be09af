// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"context"
	"sync"
	"time"

	"github.com/stratastor/logger"
)

// EventClient appends event batches to a local JSONL sink. The teacher's
// client shipped batches to Toggle over gRPC with retries; this build has
// no remote control-plane counterpart to ship to, so the sink is simply a
// rotated append-only file under the events directory.
type EventClient struct {
	path   string
	config *EventConfig
	logger logger.Logger
	mu     sync.Mutex
}

// NewEventClient creates a new event sink writing to path.
func NewEventClient(path string, cfg *EventConfig, l logger.Logger) *EventClient {
	return &EventClient{
		path:   path,
		config: cfg,
		logger: l,
	}
}

// SendBatch appends every event in the batch as one JSON line, rotating
// the sink file once it exceeds MaxFileSize.
func (ec *EventClient) SendBatch(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}

	ec.mu.Lock()
	defer ec.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(ec.path), 0755); err != nil {
		return fmt.Errorf("failed to create events directory: %w", err)
	}

	if err := ec.rotateIfNeeded(); err != nil {
		ec.logger.Warn("Failed to rotate event sink", "err", err)
	}

	f, err := os.OpenFile(ec.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("failed to open event sink: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("failed to write event %s: %w", event.ID, err)
		}
	}

	ec.logger.Debug("Wrote event batch to local sink", "count", len(events), "path", ec.path)
	return nil
}

func (ec *EventClient) rotateIfNeeded() error {
	info, err := os.Stat(ec.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < ec.config.MaxFileSize {
		return nil
	}

	rotated := fmt.Sprintf("%s.%d", ec.path, time.Now().UnixNano())
	return os.Rename(ec.path, rotated)
}
