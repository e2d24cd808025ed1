//go:build linux

package osboundary

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// linuxBoundary backs the OS Boundary on Linux desktops. It prefers pactl
// over amixer for setting volume and mute (GetVolume always reads amixer),
// and wl-copy/wl-paste over xclip for the clipboard, matching the
// teacher's factory pattern of probing tool availability once at
// construction rather than per call.
type linuxBoundary struct {
	base
	usePactl  bool
	useWayland bool
}

func newPlatformBoundary() Boundary {
	return &linuxBoundary{
		usePactl:   commandAvailable("pactl"),
		useWayland: commandAvailable("wl-copy"),
	}
}

func (l *linuxBoundary) SetVolume(ctx context.Context, level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("volume level must be 0-100, got %d", level)
	}
	if l.usePactl {
		_, err := run(ctx, "pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", level))
		return err
	}
	_, err := run(ctx, "amixer", "set", "Master", fmt.Sprintf("%d%%", level))
	return err
}

func (l *linuxBoundary) Mute(ctx context.Context) error {
	if l.usePactl {
		_, err := run(ctx, "pactl", "set-sink-mute", "@DEFAULT_SINK@", "1")
		return err
	}
	_, err := run(ctx, "amixer", "set", "Master", "mute")
	return err
}

func (l *linuxBoundary) Unmute(ctx context.Context) error {
	if l.usePactl {
		_, err := run(ctx, "pactl", "set-sink-mute", "@DEFAULT_SINK@", "0")
		return err
	}
	_, err := run(ctx, "amixer", "set", "Master", "unmute")
	return err
}

func (l *linuxBoundary) GetVolume(ctx context.Context) (int, error) {
	out, err := run(ctx, "amixer", "get", "Master")
	if err != nil {
		return 0, err
	}
	idx := strings.Index(out, "[")
	if idx < 0 {
		return 0, fmt.Errorf("could not parse amixer output")
	}
	rest := out[idx+1:]
	end := strings.Index(rest, "%")
	if end < 0 {
		return 0, fmt.Errorf("could not parse amixer output")
	}
	return strconv.Atoi(rest[:end])
}

func (l *linuxBoundary) SetBrightness(ctx context.Context, level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("brightness level must be 0-100, got %d", level)
	}
	_, err := run(ctx, "xrandr", "--output", "eDP-1", "--brightness", fmt.Sprintf("%.2f", float64(level)/100))
	return err
}

func (l *linuxBoundary) GetBrightness(ctx context.Context) (int, error) {
	return 0, fmt.Errorf("%w: reading brightness via xrandr is not supported", ErrUnsupported)
}

func (l *linuxBoundary) Lock(ctx context.Context) error {
	_, err := run(ctx, "loginctl", "lock-session")
	return err
}

func (l *linuxBoundary) Sleep(ctx context.Context) error {
	_, err := run(ctx, "systemctl", "suspend")
	return err
}

func (l *linuxBoundary) Shutdown(ctx context.Context) error {
	_, err := run(ctx, "systemctl", "poweroff")
	return err
}

func (l *linuxBoundary) OpenApp(ctx context.Context, name string) error {
	_, err := run(ctx, "xdotool", "spawn", name)
	return err
}

func (l *linuxBoundary) CloseApp(ctx context.Context, name string) error {
	_, err := run(ctx, "wmctrl", "-c", name)
	return err
}

func (l *linuxBoundary) FocusApp(ctx context.Context, name string) error {
	_, err := run(ctx, "wmctrl", "-a", name)
	return err
}

func (l *linuxBoundary) TypeText(ctx context.Context, text string) error {
	_, err := run(ctx, "xdotool", "type", "--", text)
	return err
}

func (l *linuxBoundary) PressKey(ctx context.Context, key string) error {
	_, err := run(ctx, "xdotool", "key", key)
	return err
}

func (l *linuxBoundary) Click(ctx context.Context, x, y int) error {
	if _, err := run(ctx, "xdotool", "mousemove", strconv.Itoa(x), strconv.Itoa(y)); err != nil {
		return err
	}
	_, err := run(ctx, "xdotool", "click", "1")
	return err
}

func (l *linuxBoundary) ClipboardRead(ctx context.Context) (string, error) {
	if l.useWayland {
		return run(ctx, "wl-paste")
	}
	return run(ctx, "xclip", "-selection", "clipboard", "-o")
}

func (l *linuxBoundary) ClipboardWrite(ctx context.Context, text string) error {
	if l.useWayland {
		_, err := runStdin(ctx, text, "wl-copy")
		return err
	}
	_, err := runStdin(ctx, text, "xclip", "-selection", "clipboard")
	return err
}

func (l *linuxBoundary) Screenshot(ctx context.Context) ([]byte, error) {
	tmp, err := os.CreateTemp("", "aura-screenshot-*.png")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if _, err := run(ctx, "scrot", "-o", path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}
