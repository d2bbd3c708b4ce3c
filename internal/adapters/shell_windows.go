//go:build windows

package adapters

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"pulsenet/internal/cmd"
)

// cmdTimeout bounds a plain PowerShell call.
const cmdTimeout = 10 * time.Second

// elevatedTimeout leaves the user time to answer the UAC prompt.
const elevatedTimeout = 30 * time.Second

var psFlags = []string{"-NoLogo", "-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass"}

type powerShell struct{}

// New returns the Windows adapter manager.
func New(ttl time.Duration, logger *zap.Logger) Manager {
	return NewShellManager(powerShell{}, ttl, logger)
}

// Run executes script without a console window. On failure the returned
// bytes are the script's stderr.
func (powerShell) Run(ctx context.Context, script string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, cmdTimeout)
	defer cancel()

	args := append(append([]string{}, psFlags...), "-Command", script)
	c := cmd.HiddenContext(ctx, "powershell", args...)
	var stderr bytes.Buffer
	c.Stderr = &stderr

	out, err := c.Output()
	if err != nil {
		return bytes.TrimSpace(stderr.Bytes()), fmt.Errorf("powershell: %w", err)
	}
	return bytes.TrimSpace(out), nil
}

// RunElevated runs script through ElevatedScript, which shows a UAC prompt.
// A failure inside the elevated child surfaces as a non-zero exit.
func (powerShell) RunElevated(ctx context.Context, script string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, elevatedTimeout)
	defer cancel()

	args := append(append([]string{}, psFlags...), "-Command", ElevatedScript(script))
	out, err := cmd.HiddenContext(ctx, "powershell", args...).CombinedOutput()
	if err != nil {
		return bytes.TrimSpace(out), fmt.Errorf("elevated powershell: %w", err)
	}
	return bytes.TrimSpace(out), nil
}

func (powerShell) Elevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
