//go:build windows

package osboundary

import (
	"context"
	"fmt"
	"os"
)

// windowsBoundary backs the OS Boundary on Windows via PowerShell, following
// the teacher's platform_windows.go convention of a single escape hatch
// binary instead of many small platform-specific tools.
type windowsBoundary struct{ base }

func newPlatformBoundary() Boundary { return &windowsBoundary{} }

func (w *windowsBoundary) ps(ctx context.Context, script string) (string, error) {
	return run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
}

func (w *windowsBoundary) SetVolume(ctx context.Context, level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("volume level must be 0-100, got %d", level)
	}
	// nircmd-free approach: simulate volume keys proportionally is unreliable,
	// so this uses the WScript.Shell SendKeys volume-up/down trick is out of
	// scope; AURA surfaces Unsupported until a signed helper ships.
	return fmt.Errorf("%w: precise volume level requires a packaged helper binary", ErrUnsupported)
}

func (w *windowsBoundary) Mute(ctx context.Context) error {
	_, err := w.ps(ctx, `(New-Object -com wscript.shell).SendKeys([char]173)`)
	return err
}

func (w *windowsBoundary) Unmute(ctx context.Context) error {
	_, err := w.ps(ctx, `(New-Object -com wscript.shell).SendKeys([char]173)`)
	return err
}

func (w *windowsBoundary) GetVolume(ctx context.Context) (int, error) {
	return 0, fmt.Errorf("%w: reading system volume requires a packaged helper binary", ErrUnsupported)
}

func (w *windowsBoundary) SetBrightness(ctx context.Context, level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("brightness level must be 0-100, got %d", level)
	}
	_, err := w.ps(ctx, fmt.Sprintf(
		`(Get-WmiObject -Namespace root/WMI -Class WmiMonitorBrightnessMethods).WmiSetBrightness(1,%d)`, level))
	return err
}

func (w *windowsBoundary) GetBrightness(ctx context.Context) (int, error) {
	return 0, fmt.Errorf("%w: reading brightness via WMI is not wired", ErrUnsupported)
}

func (w *windowsBoundary) Lock(ctx context.Context) error {
	_, err := w.ps(ctx, `rundll32.exe user32.dll,LockWorkStation`)
	return err
}

func (w *windowsBoundary) Sleep(ctx context.Context) error {
	_, err := w.ps(ctx, `Add-Type -AssemblyName System.Windows.Forms; [System.Windows.Forms.Application]::SetSuspendState('Suspend', $false, $false)`)
	return err
}

func (w *windowsBoundary) Shutdown(ctx context.Context) error {
	_, err := w.ps(ctx, `Stop-Computer -Force`)
	return err
}

func (w *windowsBoundary) OpenApp(ctx context.Context, name string) error {
	_, err := w.ps(ctx, fmt.Sprintf(`Start-Process "%s"`, name))
	return err
}

func (w *windowsBoundary) CloseApp(ctx context.Context, name string) error {
	_, err := w.ps(ctx, fmt.Sprintf(`Stop-Process -Name "%s" -Force`, name))
	return err
}

func (w *windowsBoundary) FocusApp(ctx context.Context, name string) error {
	return fmt.Errorf("%w: window focus requires a packaged helper binary", ErrUnsupported)
}

func (w *windowsBoundary) TypeText(ctx context.Context, text string) error {
	_, err := w.ps(ctx, fmt.Sprintf(`(New-Object -com wscript.shell).SendKeys("%s")`, text))
	return err
}

func (w *windowsBoundary) PressKey(ctx context.Context, key string) error {
	_, err := w.ps(ctx, fmt.Sprintf(`(New-Object -com wscript.shell).SendKeys("%s")`, key))
	return err
}

func (w *windowsBoundary) Click(ctx context.Context, x, y int) error {
	return fmt.Errorf("%w: synthetic clicks require a packaged helper binary", ErrUnsupported)
}

func (w *windowsBoundary) ClipboardRead(ctx context.Context) (string, error) {
	return w.ps(ctx, `Get-Clipboard`)
}

func (w *windowsBoundary) ClipboardWrite(ctx context.Context, text string) error {
	_, err := w.ps(ctx, fmt.Sprintf(`Set-Clipboard -Value "%s"`, text))
	return err
}

func (w *windowsBoundary) Screenshot(ctx context.Context) ([]byte, error) {
	tmp, err := os.CreateTemp("", "aura-screenshot-*.png")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	script := fmt.Sprintf(`Add-Type -AssemblyName System.Windows.Forms,System.Drawing; `+
		`$b=[System.Windows.Forms.SystemInformation]::VirtualScreen; `+
		`$bmp=New-Object System.Drawing.Bitmap $b.Width,$b.Height; `+
		`$g=[System.Drawing.Graphics]::FromImage($bmp); `+
		`$g.CopyFromScreen($b.Location,[System.Drawing.Point]::Empty,$b.Size); `+
		`$bmp.Save("%s")`, path)
	if _, err := w.ps(ctx, script); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}
