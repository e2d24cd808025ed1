package executor

import (
	"context"
	"fmt"

	"aura/internal/aura"
	"aura/internal/osboundary"
	"aura/internal/registry"
	"aura/internal/sandbox"
)

// RegisterBuiltins populates reg with every tool the OS Boundary exposes
// (including `get_time`, the time.now-backed tool, and `install_dependency`,
// Self-Healing's constrained installer) plus `run_program`, the
// Sandbox-backed tool that replays a promoted Capability's generated code
// (spec §4.8.3), and binds their handlers on e. Grounded on the teacher's
// internal/tools RegisterBuiltins, which wires tactile operations into the
// tool registry the same way.
func RegisterBuiltins(reg *registry.Registry, e *Executor, b osboundary.Boundary, sb *sandbox.Sandbox) error {
	specs := []aura.ToolSpec{
		{Name: "set_volume", Description: "Set system output volume (0-100)", RiskLevel: aura.RiskLow, Requires: []string{"os.audio"},
			ArgSchema: map[string]aura.ArgSpec{"level": {Type: aura.ArgInt, Required: true, HasRange: true, Min: 0, Max: 100}},
			Keywords:  []string{"volume", "set", "audio", "sound"},
			Phrases:   []string{"set the volume to 50", "turn the volume up"}},
		{Name: "mute", Description: "Mute system audio", RiskLevel: aura.RiskLow, Requires: []string{"os.audio"},
			Keywords: []string{"mute", "silence", "audio", "sound"},
			Phrases:  []string{"mute the volume", "mute sound"}},
		{Name: "unmute", Description: "Unmute system audio", RiskLevel: aura.RiskLow, Requires: []string{"os.audio"},
			Keywords: []string{"unmute", "audio", "sound"},
			Phrases:  []string{"unmute the volume", "turn sound back on"}},
		{Name: "get_volume", Description: "Read current system volume", RiskLevel: aura.RiskLow, Requires: []string{"os.audio"},
			Keywords: []string{"volume", "what", "current", "audio"},
			Phrases:  []string{"what is the volume", "how loud is it"}},

		{Name: "set_brightness", Description: "Set display brightness (0-100)", RiskLevel: aura.RiskLow, Requires: []string{"display"},
			ArgSchema: map[string]aura.ArgSpec{"level": {Type: aura.ArgInt, Required: true, HasRange: true, Min: 0, Max: 100}},
			Keywords:  []string{"brightness", "set", "display", "screen"},
			Phrases:   []string{"set the brightness to 50", "dim the screen"}},
		{Name: "get_brightness", Description: "Read current display brightness", RiskLevel: aura.RiskLow, Requires: []string{"display"},
			Keywords: []string{"brightness", "what", "current", "display"},
			Phrases:  []string{"what is the brightness"}},

		{Name: "lock_screen", Description: "Lock the session", RiskLevel: aura.RiskMedium, Requires: []string{"power"},
			Keywords: []string{"lock", "screen", "session"},
			Phrases:  []string{"lock the screen", "lock my session"}},
		{Name: "sleep_system", Description: "Suspend the machine", RiskLevel: aura.RiskConfirm, Requires: []string{"power"},
			Keywords: []string{"sleep", "suspend", "machine"},
			Phrases:  []string{"put the computer to sleep"}},
		{Name: "shutdown_system", Description: "Power off the machine", RiskLevel: aura.RiskConfirm, Requires: []string{"power"},
			Keywords: []string{"shutdown", "shut", "down", "power", "off"},
			Phrases:  []string{"shut down the computer", "power off the machine"}},

		{Name: "open_app", Description: "Launch an application by name", RiskLevel: aura.RiskLow, Requires: []string{"windowing"},
			ArgSchema: map[string]aura.ArgSpec{"name": {Type: aura.ArgString, Required: true}},
			Keywords:  []string{"open", "launch", "start", "app", "application"},
			Phrases:   []string{"open notes", "launch the browser"}},
		{Name: "close_app", Description: "Quit an application by name", RiskLevel: aura.RiskMedium, Requires: []string{"windowing"},
			ArgSchema: map[string]aura.ArgSpec{"name": {Type: aura.ArgString, Required: true}},
			Keywords:  []string{"close", "quit", "exit", "app", "application"},
			Phrases:   []string{"close notes", "quit the browser"}},
		{Name: "focus_app", Description: "Bring an application to the foreground", RiskLevel: aura.RiskLow, Requires: []string{"windowing"},
			ArgSchema: map[string]aura.ArgSpec{"name": {Type: aura.ArgString, Required: true}},
			Keywords:  []string{"focus", "switch", "bring", "foreground", "app"},
			Phrases:   []string{"switch to notes", "bring the browser to front"}},

		{Name: "type_text", Description: "Type text into the focused window", RiskLevel: aura.RiskMedium, Requires: []string{"windowing", "input"},
			ArgSchema: map[string]aura.ArgSpec{"text": {Type: aura.ArgString, Required: true}},
			Keywords:  []string{"type", "text", "write"},
			Phrases:   []string{"type hello world"}},
		{Name: "press_key", Description: "Send a single keypress", RiskLevel: aura.RiskMedium, Requires: []string{"windowing", "input"},
			ArgSchema: map[string]aura.ArgSpec{"key": {Type: aura.ArgString, Required: true}},
			Keywords:  []string{"press", "key", "keypress"},
			Phrases:   []string{"press enter", "press the escape key"}},
		{Name: "click", Description: "Synthesize a mouse click at (x, y)", RiskLevel: aura.RiskMedium, Requires: []string{"windowing", "input"},
			ArgSchema: map[string]aura.ArgSpec{
				"x": {Type: aura.ArgInt, Required: true},
				"y": {Type: aura.ArgInt, Required: true},
			},
			Keywords: []string{"click", "mouse", "tap"},
			Phrases:  []string{"click at 100 200"}},

		{Name: "clipboard_read", Description: "Read the system clipboard", RiskLevel: aura.RiskLow, Requires: []string{"clipboard"},
			Keywords: []string{"clipboard", "read", "paste", "copied"},
			Phrases:  []string{"what is on the clipboard", "read the clipboard"}},
		{Name: "clipboard_write", Description: "Write text to the system clipboard", RiskLevel: aura.RiskLow, Requires: []string{"clipboard"},
			ArgSchema: map[string]aura.ArgSpec{"text": {Type: aura.ArgString, Required: true}},
			Keywords:  []string{"clipboard", "copy", "write"},
			Phrases:   []string{"copy this to the clipboard"}},

		{Name: "files_create_dir", Description: "Create a directory (and parents)", RiskLevel: aura.RiskLow,
			ArgSchema: map[string]aura.ArgSpec{"path": {Type: aura.ArgString, Required: true}},
			Keywords:  []string{"create", "directory", "folder", "mkdir"},
			Phrases:   []string{"create a folder", "make a new directory"}},
		{Name: "files_read", Description: "Read a text file", RiskLevel: aura.RiskLow,
			ArgSchema: map[string]aura.ArgSpec{"path": {Type: aura.ArgString, Required: true}},
			Keywords:  []string{"read", "file", "open", "show"},
			Phrases:   []string{"read this file", "show me the contents of a file"}},
		{Name: "files_write", Description: "Write a text file, overwriting it", RiskLevel: aura.RiskMedium,
			ArgSchema: map[string]aura.ArgSpec{
				"path":    {Type: aura.ArgString, Required: true},
				"content": {Type: aura.ArgString, Required: true},
			},
			Keywords: []string{"write", "save", "file"},
			Phrases:  []string{"write this to a file", "save this text to a file"}},
		{Name: "files_move", Description: "Move or rename a file", RiskLevel: aura.RiskMedium,
			ArgSchema: map[string]aura.ArgSpec{
				"from": {Type: aura.ArgString, Required: true},
				"to":   {Type: aura.ArgString, Required: true},
			},
			Keywords: []string{"move", "rename", "file"},
			Phrases:  []string{"move this file", "rename a file"}},
		{Name: "files_delete", Description: "Delete a file", RiskLevel: aura.RiskConfirm,
			ArgSchema: map[string]aura.ArgSpec{"path": {Type: aura.ArgString, Required: true}},
			Keywords:  []string{"delete", "remove", "file"},
			Phrases:   []string{"delete this file", "remove a file"}},

		{Name: "screenshot", Description: "Capture the screen", RiskLevel: aura.RiskLow, Requires: []string{"display"},
			Keywords: []string{"screenshot", "capture", "screen"},
			Phrases:  []string{"take a screenshot"}},

		{Name: "get_time", Description: "Read the current time", RiskLevel: aura.RiskLow,
			Keywords: []string{"time", "clock", "current", "what"},
			Phrases:  []string{"what time is it", "what's the current time"}},

		{Name: "run_program", Description: "Replay a sandboxed program (Sandbox-backed; used by promoted Capabilities)", RiskLevel: aura.RiskMedium, TimeoutMs: 15000,
			ArgSchema: map[string]aura.ArgSpec{
				"code":  {Type: aura.ArgString, Required: true},
				"input": {Type: aura.ArgString, Required: false, Default: ""},
			},
			Keywords: []string{"run", "replay", "execute"},
			Phrases:  []string{"run this program"}},
		{Name: "install_dependency", Description: "Install a missing Go package dependency via go get", RiskLevel: aura.RiskConfirm, TimeoutMs: 60000,
			ArgSchema: map[string]aura.ArgSpec{"module": {Type: aura.ArgString, Required: true}},
			Keywords:  []string{"install", "dependency", "module", "package"},
			Phrases:   []string{"install a missing dependency"}},
	}

	for _, s := range specs {
		if err := reg.Register(s); err != nil {
			return fmt.Errorf("registering builtin tool %q: %w", s.Name, err)
		}
	}

	e.Bind("set_volume", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, b.SetVolume(ctx, args["level"].(int))
	})
	e.Bind("mute", func(ctx context.Context, _ map[string]any) (any, error) { return nil, b.Mute(ctx) })
	e.Bind("unmute", func(ctx context.Context, _ map[string]any) (any, error) { return nil, b.Unmute(ctx) })
	e.Bind("get_volume", func(ctx context.Context, _ map[string]any) (any, error) { return b.GetVolume(ctx) })

	e.Bind("set_brightness", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, b.SetBrightness(ctx, args["level"].(int))
	})
	e.Bind("get_brightness", func(ctx context.Context, _ map[string]any) (any, error) { return b.GetBrightness(ctx) })

	e.Bind("lock_screen", func(ctx context.Context, _ map[string]any) (any, error) { return nil, b.Lock(ctx) })
	e.Bind("sleep_system", func(ctx context.Context, _ map[string]any) (any, error) { return nil, b.Sleep(ctx) })
	e.Bind("shutdown_system", func(ctx context.Context, _ map[string]any) (any, error) { return nil, b.Shutdown(ctx) })

	e.Bind("open_app", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, b.OpenApp(ctx, args["name"].(string))
	})
	e.Bind("close_app", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, b.CloseApp(ctx, args["name"].(string))
	})
	e.Bind("focus_app", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, b.FocusApp(ctx, args["name"].(string))
	})

	e.Bind("type_text", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, b.TypeText(ctx, args["text"].(string))
	})
	e.Bind("press_key", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, b.PressKey(ctx, args["key"].(string))
	})
	e.Bind("click", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, b.Click(ctx, args["x"].(int), args["y"].(int))
	})

	e.Bind("clipboard_read", func(ctx context.Context, _ map[string]any) (any, error) { return b.ClipboardRead(ctx) })
	e.Bind("clipboard_write", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, b.ClipboardWrite(ctx, args["text"].(string))
	})

	e.Bind("files_create_dir", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, b.FilesCreateDir(ctx, args["path"].(string))
	})
	e.Bind("files_read", func(ctx context.Context, args map[string]any) (any, error) {
		return b.FilesRead(ctx, args["path"].(string))
	})
	e.Bind("files_write", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, b.FilesWrite(ctx, args["path"].(string), args["content"].(string))
	})
	e.Bind("files_move", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, b.FilesMove(ctx, args["from"].(string), args["to"].(string))
	})
	e.Bind("files_delete", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, b.FilesDelete(ctx, args["path"].(string))
	})

	e.Bind("screenshot", func(ctx context.Context, _ map[string]any) (any, error) { return b.Screenshot(ctx) })

	e.Bind("get_time", func(ctx context.Context, _ map[string]any) (any, error) { return b.Now(ctx) })

	e.Bind("run_program", func(ctx context.Context, args map[string]any) (any, error) {
		code, _ := args["code"].(string)
		input, _ := args["input"].(string)
		out, sandboxErr := sb.Run(ctx, code, input)
		if sandboxErr != nil {
			return nil, sandboxErr
		}
		return out, nil
	})
	e.Bind("install_dependency", func(ctx context.Context, args map[string]any) (any, error) {
		return b.InstallDependency(ctx, args["module"].(string))
	})

	return nil
}
