// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	shellquote "github.com/kballard/go-shellquote"
	rterrors "github.com/stratastor/horcrux/pkg/errors"
	"github.com/stratastor/logger"
)

// Dangerous characters that could enable command injection
var dangerousChars = "&|><$`\\[];{}"

// Command execution timeout
const defaultCommandTimeout = 30 * time.Second

// maxCapturedOutput bounds how much stdout/stderr is held in memory for a
// single invocation; output beyond this is dropped (a failed
// ExecuteWithCombinedOutput/ExecuteWithStdin call records output_truncated
// in its error metadata) rather than letting a runaway command (e.g. a verbose net ads trace)
// exhaust memory.
const maxCapturedOutput = 16 * 1024 * 1024

// gracefulShutdownWait is how long Execute waits after SIGTERM before
// escalating to SIGKILL.
const gracefulShutdownWait = 2 * time.Second

// ExecCommand executes a system command with proper security checks
func ExecCommand(
	ctx context.Context,
	logger logger.Logger,
	name string,
	args ...string,
) ([]byte, error) {
	if err := validateCommand(name, args); err != nil {
		return nil, err
	}

	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, defaultCommandTimeout)
		defer cancel()
	}

	cmdString := shellquote.Join(append([]string{name}, args...)...)
	logger.Debug("Executing command", "cmd", cmdString)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = []string{}

	output, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Error("Command execution failed with exit code",
				"cmd", cmdString,
				"exit_code", exitErr.ExitCode(),
				"output", string(output))

			return output, rterrors.Wrap(err, rterrors.CommandExecution).
				WithMetadata("command", cmdString).
				WithMetadata("exit_code", fmt.Sprintf("%d", exitErr.ExitCode())).
				WithMetadata("output", string(output))
		}

		logger.Error("Command execution failed", "cmd", cmdString, "err", err, "output", string(output))
		return output, fmt.Errorf("command execution failed: %w: %s", err, string(output))
	}

	return output, nil
}

// validateCommand performs security checks on the command and arguments
func validateCommand(name string, args []string) error {
	if name == "" {
		return rterrors.New(rterrors.CommandInvalidInput, "empty command")
	}

	if !strings.HasPrefix(name, "/") && strings.ContainsAny(name, "/\\") {
		return rterrors.New(rterrors.CommandInvalidInput, "relative paths are not allowed for commands")
	}

	if strings.ContainsAny(name, dangerousChars) {
		return rterrors.New(rterrors.CommandInvalidInput, "command contains invalid characters")
	}

	for _, arg := range args {
		if strings.ContainsAny(arg, dangerousChars) {
			return rterrors.New(rterrors.CommandInvalidInput, "argument contains invalid characters")
		}
		if strings.Contains(arg, "..") {
			return rterrors.New(rterrors.CommandInvalidInput, "path traversal not allowed")
		}
	}

	if len(args) > 64 {
		return rterrors.New(rterrors.CommandInvalidInput, "too many arguments")
	}

	return nil
}

// PrerequisiteMissing checks whether name resolves on PATH, returning a
// CommandPrerequisiteMissing error if not. Call this before shelling out to
// optional tooling (smbcontrol, net, wbinfo) so the caller gets a clear,
// typed failure instead of an opaque "exec: not found".
func PrerequisiteMissing(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return rterrors.New(rterrors.CommandPrerequisiteMissing, name+" not found on PATH")
	}
	return nil
}

// CommandExecutor provides a general-purpose command execution service
type CommandExecutor struct {
	UseSudo bool
	Timeout time.Duration
	WorkDir string
	Env     []string
}

// NewCommandExecutor creates a new command executor
func NewCommandExecutor(useSudo bool) *CommandExecutor {
	return &CommandExecutor{
		UseSudo: useSudo,
		Timeout: defaultCommandTimeout,
	}
}

func (e *CommandExecutor) buildArgs(cmd string, args []string) []string {
	cmdArgs := make([]string, 0, len(args)+1)
	if e.UseSudo {
		cmdArgs = append(cmdArgs, "sudo", cmd)
	} else {
		cmdArgs = append(cmdArgs, cmd)
	}
	return append(cmdArgs, args...)
}

// runAndWait starts cmd and waits for it, escalating SIGTERM to SIGKILL if
// ctx is cancelled or the deadline elapses before the process exits on its
// own — exec.CommandContext alone only sends SIGKILL immediately, which
// doesn't give e.g. smbcontrol or net a chance to flush state on shutdown.
func runAndWait(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case err := <-done:
			return err
		case <-time.After(gracefulShutdownWait):
			_ = cmd.Process.Kill()
			<-done
			return ctx.Err()
		}
	}
}

// boundedBuffer wraps a bytes.Buffer, silently discarding writes past limit
// so a runaway command can't balloon memory use.
type boundedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

// Execute runs a command and returns its stdout. Elapsed wall-clock time
// for the call is available to callers that want to log it via the
// returned error's metadata on failure.
func (e *CommandExecutor) Execute(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok && e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmdArgs := e.buildArgs(cmd, args)
	execCmd := exec.Command(cmdArgs[0], cmdArgs[1:]...)
	execCmd.Env = append(execCmd.Env, e.Env...)
	if e.WorkDir != "" {
		execCmd.Dir = e.WorkDir
	}

	var stdout, stderr boundedBuffer
	stdout.limit, stderr.limit = maxCapturedOutput, maxCapturedOutput
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	start := time.Now()
	err := runAndWait(ctx, execCmd)
	elapsed := time.Since(start)

	if err != nil {
		return stderr.buf.Bytes(), rterrors.NewCommandError(
			shellquote.Join(append([]string{cmd}, args...)...), exitCodeOf(err), stderr.buf.String(),
		).WithMetadata("elapsed", elapsed.String())
	}

	return stdout.buf.Bytes(), nil
}

// ExecuteWithCombinedOutput runs a command and returns combined stdout/stderr
func (e *CommandExecutor) ExecuteWithCombinedOutput(
	ctx context.Context,
	cmd string,
	args ...string,
) ([]byte, error) {
	return e.execute(ctx, "", cmd, args...)
}

// ExecuteWithStdin runs a command, piping stdin to it (e.g. a password for
// 'net ads join', which otherwise must be passed via --password on argv),
// and returns combined stdout/stderr.
func (e *CommandExecutor) ExecuteWithStdin(
	ctx context.Context,
	stdin string,
	cmd string,
	args ...string,
) ([]byte, error) {
	return e.execute(ctx, stdin, cmd, args...)
}

func (e *CommandExecutor) execute(ctx context.Context, stdin, cmd string, args ...string) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok && e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmdArgs := e.buildArgs(cmd, args)
	execCmd := exec.Command(cmdArgs[0], cmdArgs[1:]...)
	execCmd.Env = append(execCmd.Env, e.Env...)
	if e.WorkDir != "" {
		execCmd.Dir = e.WorkDir
	}

	if stdin != "" {
		execCmd.Stdin = strings.NewReader(stdin)
	}

	var combined boundedBuffer
	combined.limit = maxCapturedOutput
	execCmd.Stdout = &combined
	execCmd.Stderr = &combined

	start := time.Now()
	err := runAndWait(ctx, execCmd)
	elapsed := time.Since(start)

	if err != nil {
		cmdErr := rterrors.NewCommandError(
			shellquote.Join(append([]string{cmd}, args...)...), exitCodeOf(err), combined.buf.String(),
		).WithMetadata("elapsed", elapsed.String())
		if combined.truncated {
			cmdErr.WithMetadata("output_truncated", "true")
		}
		return combined.buf.Bytes(), cmdErr
	}

	return combined.buf.Bytes(), nil
}

func exitCodeOf(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
