package osboundary

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"aura/internal/logging"
)

// allowedBinaries mirrors the teacher's SafeExecutor.AllowedBinaries
// discipline: the OS Boundary only ever shells out to a fixed, named set
// of platform utilities, never an arbitrary binary derived from user text.
var allowedBinaries = map[string]bool{
	"amixer":      true,
	"pactl":       true,
	"osascript":   true,
	"xrandr":      true,
	"xdotool":     true,
	"xclip":       true,
	"wl-copy":     true,
	"wl-paste":    true,
	"scrot":       true,
	"powershell":  true,
	"loginctl":    true,
	"systemctl":   true,
	"open":          true,
	"wmctrl":        true,
	"screencapture": true,
	"go":            true,
}

// run executes an allowlisted binary with a bounded timeout and returns its
// combined output. Grounded on tactile.SafeExecutor.Execute's defense-in-
// depth check plus context timeout.
func run(ctx context.Context, binary string, args ...string) (string, error) {
	return runTimeout(ctx, 10*time.Second, binary, args...)
}

// runTimeout is run with a caller-chosen timeout, for boundary operations
// (dependency installs) that legitimately take longer than the 10s default.
func runTimeout(ctx context.Context, timeout time.Duration, binary string, args ...string) (string, error) {
	if !allowedBinaries[binary] {
		return "", fmt.Errorf("%w: binary %q is not on the OS boundary allowlist", ErrUnsupported, binary)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	log := logging.For(logging.CategoryOSBoundary)
	log.Debugw("running boundary command", "binary", binary, "args", args)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s timed out: %w", binary, ctx.Err())
		}
		return "", fmt.Errorf("%s failed: %w (%s)", binary, err, out.String())
	}
	return out.String(), nil
}

// InstallDependency fetches a missing Go module via `go get`, used by the
// Self-Healing Loop's dependency-repair path (spec §4.8). It is the only
// place `go` is invoked, and only through the same allowlist/timeout
// discipline every other boundary command obeys.
func (base) InstallDependency(ctx context.Context, module string) (string, error) {
	return runTimeout(ctx, 60*time.Second, "go", "get", module)
}

// runStdin is like run but feeds input on the child's stdin, used for
// clipboard writers (xclip, wl-copy) that read the value to set rather than
// taking it as an argument.
func runStdin(ctx context.Context, input, binary string, args ...string) (string, error) {
	if !allowedBinaries[binary] {
		return "", fmt.Errorf("%w: binary %q is not on the OS boundary allowlist", ErrUnsupported, binary)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = bytes.NewBufferString(input)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s timed out: %w", binary, ctx.Err())
		}
		return "", fmt.Errorf("%s failed: %w (%s)", binary, err, out.String())
	}
	return out.String(), nil
}

// commandAvailable reports whether binary resolves on PATH, used to pick
// between alternative backends for the same capability (e.g. pactl vs
// amixer, wl-clipboard vs xclip) at construction time.
func commandAvailable(binary string) bool {
	_, err := exec.LookPath(binary)
	return err == nil
}
