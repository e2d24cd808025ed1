//go:build darwin

package osboundary

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// darwinBoundary backs the OS Boundary on macOS via osascript, following
// the teacher's platform_darwin.go convention of shelling out to AppleScript
// for anything the stdlib can't reach directly.
type darwinBoundary struct{ base }

func newPlatformBoundary() Boundary { return &darwinBoundary{} }

func (d *darwinBoundary) osa(ctx context.Context, script string) (string, error) {
	return run(ctx, "osascript", "-e", script)
}

func (d *darwinBoundary) SetVolume(ctx context.Context, level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("volume level must be 0-100, got %d", level)
	}
	_, err := d.osa(ctx, fmt.Sprintf("set volume output volume %d", level))
	return err
}

func (d *darwinBoundary) Mute(ctx context.Context) error {
	_, err := d.osa(ctx, "set volume with output muted")
	return err
}

func (d *darwinBoundary) Unmute(ctx context.Context) error {
	_, err := d.osa(ctx, "set volume without output muted")
	return err
}

func (d *darwinBoundary) GetVolume(ctx context.Context) (int, error) {
	out, err := d.osa(ctx, "output volume of (get volume settings)")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(out))
}

func (d *darwinBoundary) SetBrightness(ctx context.Context, level int) error {
	return fmt.Errorf("%w: macOS brightness control requires a helper binary not on the allowlist", ErrUnsupported)
}

func (d *darwinBoundary) GetBrightness(ctx context.Context) (int, error) {
	return 0, fmt.Errorf("%w: macOS brightness control requires a helper binary not on the allowlist", ErrUnsupported)
}

func (d *darwinBoundary) Lock(ctx context.Context) error {
	_, err := d.osa(ctx, `tell application "System Events" to keystroke "q" using {control down, command down}`)
	return err
}

func (d *darwinBoundary) Sleep(ctx context.Context) error {
	_, err := d.osa(ctx, `tell application "System Events" to sleep`)
	return err
}

func (d *darwinBoundary) Shutdown(ctx context.Context) error {
	_, err := d.osa(ctx, `tell application "System Events" to shut down`)
	return err
}

func (d *darwinBoundary) OpenApp(ctx context.Context, name string) error {
	_, err := run(ctx, "open", "-a", name)
	return err
}

func (d *darwinBoundary) CloseApp(ctx context.Context, name string) error {
	_, err := d.osa(ctx, fmt.Sprintf(`tell application "%s" to quit`, name))
	return err
}

func (d *darwinBoundary) FocusApp(ctx context.Context, name string) error {
	_, err := d.osa(ctx, fmt.Sprintf(`tell application "%s" to activate`, name))
	return err
}

func (d *darwinBoundary) TypeText(ctx context.Context, text string) error {
	_, err := d.osa(ctx, fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, text))
	return err
}

func (d *darwinBoundary) PressKey(ctx context.Context, key string) error {
	_, err := d.osa(ctx, fmt.Sprintf(`tell application "System Events" to key code %s`, key))
	return err
}

func (d *darwinBoundary) Click(ctx context.Context, x, y int) error {
	return fmt.Errorf("%w: synthetic clicks require a helper binary not on the allowlist", ErrUnsupported)
}

func (d *darwinBoundary) ClipboardRead(ctx context.Context) (string, error) {
	return run(ctx, "osascript", "-e", "the clipboard as text")
}

func (d *darwinBoundary) ClipboardWrite(ctx context.Context, text string) error {
	_, err := d.osa(ctx, fmt.Sprintf(`set the clipboard to "%s"`, text))
	return err
}

func (d *darwinBoundary) Screenshot(ctx context.Context) ([]byte, error) {
	tmp, err := os.CreateTemp("", "aura-screenshot-*.png")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if _, err := run(ctx, "screencapture", "-x", path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}
