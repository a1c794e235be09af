// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"github.com/google/uuid"
	"github.com/stratastor/horcrux/config"
	"github.com/stratastor/logger"
)

// Global logger
var Log logger.Logger

func init() {
	var err error
	Log, err = logger.NewTag(config.NewLoggerConfig(config.GetConfig()), "global")
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
}

// UUID7 generates a new UUID using V7, falling back to V4 if V7 errors.
func UUID7() string {
	uv7, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return uv7.String()
}
