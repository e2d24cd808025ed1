package executor

import (
	"context"
	"testing"
	"time"

	"aura/internal/config"
	"aura/internal/registry"
	"aura/internal/sandbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBoundary is a minimal osboundary.Boundary double: every method but
// Now and InstallDependency is an unused stub, since builtins_test.go only
// exercises the handlers that don't already have osboundary's own tests.
type fakeBoundary struct {
	now            time.Time
	installModule  string
	installResult  string
}

func (f *fakeBoundary) SetVolume(context.Context, int) error       { return nil }
func (f *fakeBoundary) Mute(context.Context) error                 { return nil }
func (f *fakeBoundary) Unmute(context.Context) error                { return nil }
func (f *fakeBoundary) GetVolume(context.Context) (int, error)      { return 0, nil }
func (f *fakeBoundary) SetBrightness(context.Context, int) error    { return nil }
func (f *fakeBoundary) GetBrightness(context.Context) (int, error)  { return 0, nil }
func (f *fakeBoundary) Lock(context.Context) error                  { return nil }
func (f *fakeBoundary) Sleep(context.Context) error                 { return nil }
func (f *fakeBoundary) Shutdown(context.Context) error              { return nil }
func (f *fakeBoundary) OpenApp(context.Context, string) error       { return nil }
func (f *fakeBoundary) CloseApp(context.Context, string) error      { return nil }
func (f *fakeBoundary) FocusApp(context.Context, string) error      { return nil }
func (f *fakeBoundary) TypeText(context.Context, string) error      { return nil }
func (f *fakeBoundary) PressKey(context.Context, string) error      { return nil }
func (f *fakeBoundary) Click(context.Context, int, int) error       { return nil }
func (f *fakeBoundary) ClipboardRead(context.Context) (string, error) { return "", nil }
func (f *fakeBoundary) ClipboardWrite(context.Context, string) error  { return nil }
func (f *fakeBoundary) FilesCreateDir(context.Context, string) error  { return nil }
func (f *fakeBoundary) FilesRead(context.Context, string) (string, error) { return "", nil }
func (f *fakeBoundary) FilesWrite(context.Context, string, string) error  { return nil }
func (f *fakeBoundary) FilesMove(context.Context, string, string) error   { return nil }
func (f *fakeBoundary) FilesDelete(context.Context, string) error         { return nil }
func (f *fakeBoundary) Screenshot(context.Context) ([]byte, error)        { return nil, nil }
func (f *fakeBoundary) Now(ctx context.Context) (time.Time, error)        { return f.now, nil }
func (f *fakeBoundary) InstallDependency(ctx context.Context, module string) (string, error) {
	f.installModule = module
	return f.installResult, nil
}

func newTestSandbox() *sandbox.Sandbox {
	return sandbox.New(config.SandboxConfig{
		Timeout:        2 * time.Second,
		MaxMemoryMB:    128,
		AllowedImports: []string{"strings"},
	})
}

func TestRegisterBuiltinsGetTimeReadsBoundaryClock(t *testing.T) {
	reg := registry.New()
	exec := New(reg, nil, nil, 2*time.Second)
	want := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	b := &fakeBoundary{now: want}
	require.NoError(t, RegisterBuiltins(reg, exec, b, newTestSandbox()))

	res := exec.Execute(context.Background(), "get_time", nil, Policy{})
	require.True(t, res.OK)
	assert.Equal(t, want, res.Value)
}

func TestRegisterBuiltinsRunProgramReplaysSandboxedCode(t *testing.T) {
	reg := registry.New()
	exec := New(reg, nil, nil, 2*time.Second)
	require.NoError(t, RegisterBuiltins(reg, exec, &fakeBoundary{}, newTestSandbox()))

	code := `
import "strings"

func RunTool(input string) (string, error) {
	return strings.ToUpper(input), nil
}
`
	res := exec.Execute(context.Background(), "run_program", map[string]any{"code": code, "input": "hello"}, Policy{})
	require.True(t, res.OK)
	assert.Equal(t, "HELLO", res.Value)
}

func TestRegisterBuiltinsRunProgramSurfacesSandboxViolation(t *testing.T) {
	reg := registry.New()
	exec := New(reg, nil, nil, 2*time.Second)
	require.NoError(t, RegisterBuiltins(reg, exec, &fakeBoundary{}, newTestSandbox()))

	res := exec.Execute(context.Background(), "run_program", map[string]any{"code": "not valid go", "input": ""}, Policy{})
	require.False(t, res.OK)
}

func TestRegisterBuiltinsInstallDependencyRoutesThroughBoundary(t *testing.T) {
	reg := registry.New()
	exec := New(reg, nil, nil, 2*time.Second)
	b := &fakeBoundary{installResult: "go: added example.com/foo v1.0.0"}
	require.NoError(t, RegisterBuiltins(reg, exec, b, newTestSandbox()))

	res := exec.Execute(context.Background(), "install_dependency", map[string]any{"module": "example.com/foo"}, Policy{Confirmed: true})
	require.True(t, res.OK)
	assert.Equal(t, "example.com/foo", b.installModule)
	assert.Equal(t, "go: added example.com/foo v1.0.0", res.Value)
}
