/*
 * Copyright 2024-2025 Raamsri Kumar <raam@tinkershack.in>
 * Copyright 2024-2025 The StrataSTOR Authors and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

func (e *HorcruxError) Error() string {
	// Error() omits metadata except a non-empty "stderr" entry, appended as
	// command output: it follows the standard error interface for concise
	// messages, while Metadata is for structured consumption (logging, API
	// responses).
	msg := fmt.Sprintf("[%s-%d] %s", e.Domain, e.Code, e.Message)
	if e.Details != "" {
		msg += " - " + e.Details
	}
	if e.Metadata != nil {
		if stderr, ok := e.Metadata["stderr"]; ok && stderr != "" {
			msg += "\nCommand output: " + stderr
		}
	}
	return msg
}

func (e *HorcruxError) WithMetadata(key, value string) *HorcruxError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// MarshalJSON customizes JSON serialization
func (e *HorcruxError) MarshalJSON() ([]byte, error) {
	type Alias HorcruxError
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(e),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// New creates a new HorcruxError from a registered error code.
func New(code ErrorCode, details string) *HorcruxError {
	def, ok := errorDefinitions[code]
	if !ok {
		return &HorcruxError{
			Code:       code,
			Domain:     "UNKNOWN",
			Message:    "Unknown error",
			Details:    details,
			HTTPStatus: http.StatusInternalServerError,
		}
	}

	return &HorcruxError{
		Code:       code,
		Domain:     def.domain,
		Message:    def.message,
		Details:    details,
		HTTPStatus: def.httpStatus,
	}
}

// Is implements the interface for errors.Is
func (e *HorcruxError) Is(target error) bool {
	if t, ok := target.(*HorcruxError); ok {
		return e.Code == t.Code && e.Domain == t.Domain
	}
	return false
}

// Is checks if an error matches a sentinel error
func Is(err, target error) bool {
	he, ok := err.(*HorcruxError)
	if !ok {
		return false
	}

	if t, ok := target.(*HorcruxError); ok {
		return he.Code == t.Code && he.Domain == t.Domain
	}
	return false
}

// Wrap wraps an existing error with additional context, preserving metadata.
func Wrap(err error, code ErrorCode) *HorcruxError {
	if he, ok := err.(*HorcruxError); ok {
		newErr := New(code, he.Details)
		if he.Metadata != nil {
			for k, v := range he.Metadata {
				newErr.WithMetadata(k, v)
			}
		}
		newErr.WithMetadata("wrapped_code", fmt.Sprintf("%d", he.Code))
		newErr.WithMetadata("wrapped_domain", string(he.Domain))
		newErr.WithMetadata("wrapped_message", he.Message)
		return newErr
	}
	return New(code, err.Error())
}

// Unwrap implements the interface for errors.Unwrap
func (e *HorcruxError) Unwrap() error {
	if e.Metadata != nil {
		if originalErr, ok := e.Metadata["wrapped_error"]; ok {
			return fmt.Errorf("%s", originalErr)
		}
	}
	return nil
}

// IsHorcruxError checks if an error is a HorcruxError
func IsHorcruxError(err error) bool {
	_, ok := err.(*HorcruxError)
	return ok
}

// CommandError captures command execution failure details
type CommandError struct {
	Command  string
	ExitCode int
	StdErr   string
}

func NewCommandError(cmd string, exitCode int, stderr string) *HorcruxError {
	return New(CommandExecution, "Command execution failed").
		WithMetadata("command", cmd).
		WithMetadata("exit_code", fmt.Sprintf("%d", exitCode)).
		WithMetadata("stderr", stderr)
}

// GetCode extracts the error code from an error if it's a HorcruxError.
// If not a HorcruxError, returns 0 and false.
func GetCode(err error) (ErrorCode, bool) {
	if err == nil {
		return 0, false
	}

	if he, ok := err.(*HorcruxError); ok {
		return he.Code, true
	}

	var horcruxErr *HorcruxError
	if errors.As(err, &horcruxErr) {
		return horcruxErr.Code, true
	}

	return 0, false
}

// GetErrorWithCode returns the first HorcruxError in the error chain with
// the specified code. Returns nil if no matching error is found.
func GetErrorWithCode(err error, code ErrorCode) *HorcruxError {
	if err == nil {
		return nil
	}

	if he, ok := err.(*HorcruxError); ok && he.Code == code {
		return he
	}

	var horcruxErr *HorcruxError
	if errors.As(err, &horcruxErr) && horcruxErr.Code == code {
		return horcruxErr
	}

	return nil
}
