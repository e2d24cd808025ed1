// Package osboundary is the only component permitted to invoke platform
// APIs (spec §4.9, invariant 2). Every Layer 1/2 tool handler that needs an
// OS effect calls into Boundary rather than importing platform packages
// directly. Per-OS behavior lives in build-tagged files, following the
// teacher's internal/tactile/platform_{linux,darwin,windows}.go split.
package osboundary

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupported is returned for a capability the current platform lacks.
var ErrUnsupported = errors.New("operation unsupported on this platform")

// Boundary is the flat operation set named in spec §4.9.
type Boundary interface {
	// audio
	SetVolume(ctx context.Context, level int) error
	Mute(ctx context.Context) error
	Unmute(ctx context.Context) error
	GetVolume(ctx context.Context) (int, error)

	// display
	SetBrightness(ctx context.Context, level int) error
	GetBrightness(ctx context.Context) (int, error)

	// power
	Lock(ctx context.Context) error
	Sleep(ctx context.Context) error
	Shutdown(ctx context.Context) error

	// apps
	OpenApp(ctx context.Context, name string) error
	CloseApp(ctx context.Context, name string) error
	FocusApp(ctx context.Context, name string) error

	// input
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
	Click(ctx context.Context, x, y int) error

	// clipboard
	ClipboardRead(ctx context.Context) (string, error)
	ClipboardWrite(ctx context.Context, text string) error

	// files (cross-platform, pure stdlib — see files.go)
	FilesCreateDir(ctx context.Context, path string) error
	FilesRead(ctx context.Context, path string) (string, error)
	FilesWrite(ctx context.Context, path, content string) error
	FilesMove(ctx context.Context, from, to string) error
	FilesDelete(ctx context.Context, path string) error

	// desktop
	Screenshot(ctx context.Context) ([]byte, error)

	// time
	Now(ctx context.Context) (time.Time, error)

	// dependencies
	InstallDependency(ctx context.Context, module string) (string, error)
}

// New returns the platform-appropriate Boundary implementation. The
// build-tagged newPlatformBoundary provides the audio/display/power/apps/
// input/clipboard/desktop backends; files.* and time.now are shared.
func New() Boundary {
	return newPlatformBoundary()
}
