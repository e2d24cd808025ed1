// Package sandbox implements the Code Sandbox (spec §4.5): the only place
// LLM-generated Go source is ever run. It interprets code with Yaegi rather
// than invoking `go build`, following the teacher's
// internal/autopoiesis/yaegi_executor.go "dependency hell prevention"
// rationale — no compiler, no binary, no toolchain hang — and adds a
// memory-cap watchdog and richer violation reporting the teacher's version
// didn't need because it only ran pre-vetted generated tools.
package sandbox

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"aura/internal/aura"
	"aura/internal/config"
	"aura/internal/logging"
)

// Sandbox runs untrusted Go source produced by the Code-Gen Fallback layer
// under an import allowlist, a wall-clock timeout, and a memory ceiling.
type Sandbox struct {
	allowed   map[string]bool
	timeout   time.Duration
	maxMemMB  int
}

// New builds a Sandbox from config.SandboxConfig.
func New(cfg config.SandboxConfig) *Sandbox {
	allowed := make(map[string]bool, len(cfg.AllowedImports))
	for _, pkg := range cfg.AllowedImports {
		allowed[pkg] = true
	}
	return &Sandbox{allowed: allowed, timeout: cfg.Timeout, maxMemMB: cfg.MaxMemoryMB}
}

// Run interprets code, which must define `func RunTool(input string) (string, error)`,
// and calls it with input. Any failure is reported as an *aura.Error with
// kind SandboxViolation or Timeout, or Internal if the interpreter's
// stdlib symbols fail to load (spec §7 taxonomy), so
// callers never have to inspect interp-internal error types.
func (s *Sandbox) Run(ctx context.Context, code, input string) (string, *aura.Error) {
	log := logging.For(logging.CategorySandbox)

	if err := s.validateImports(code); err != nil {
		return "", aura.NewError(aura.ErrSandboxViolation, err.Error(), nil)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return "", aura.NewError(aura.ErrInternal, "failed to load sandbox stdlib", err)
	}

	if _, err := i.Eval(wrapCode(code)); err != nil {
		return "", aura.NewError(aura.ErrSandboxViolation, "code evaluation failed: "+err.Error(), nil)
	}

	runToolVal, err := i.Eval("main.RunTool")
	if err != nil {
		return "", aura.NewError(aura.ErrSandboxViolation, "RunTool function not found", nil)
	}
	runTool, ok := runToolVal.Interface().(func(string) (string, error))
	if !ok {
		return "", aura.NewError(aura.ErrSandboxViolation, "RunTool has incorrect signature, expected func(string) (string, error)", nil)
	}

	timeout := s.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	memExceeded := make(chan struct{}, 1)
	watchdogDone := make(chan struct{})
	if s.maxMemMB > 0 {
		go s.watchMemory(runCtx, watchdogDone, memExceeded)
	} else {
		close(watchdogDone)
	}

	type outcome struct {
		val string
		err error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		val, err := runTool(input)
		resultCh <- outcome{val, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			log.Warnw("sandboxed code returned an error", "error", r.err)
			return "", aura.NewError(aura.ErrSandboxViolation, "sandboxed code failed", r.err)
		}
		return r.val, nil
	case <-memExceeded:
		log.Warnw("sandbox memory cap exceeded", "max_mb", s.maxMemMB)
		return "", aura.NewError(aura.ErrSandboxViolation, fmt.Sprintf("exceeded memory cap of %dMB", s.maxMemMB), nil)
	case <-runCtx.Done():
		log.Warnw("sandbox execution timed out", "timeout", timeout)
		return "", aura.NewError(aura.ErrTimeout, "sandboxed code timed out", runCtx.Err())
	}
}

// watchMemory polls runtime.ReadMemStats and signals memExceeded if the
// process's heap grows past maxMemMB while this sandbox run is active. This
// is a process-wide, best-effort cap — Yaegi offers no per-interpreter
// memory isolation — and is therefore supplemental to, not a substitute
// for, the import allowlist.
func (s *Sandbox) watchMemory(ctx context.Context, done chan<- struct{}, exceeded chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var stats runtime.MemStats
	limitBytes := uint64(s.maxMemMB) * 1024 * 1024
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runtime.ReadMemStats(&stats)
			if stats.HeapAlloc > limitBytes {
				select {
				case exceeded <- struct{}{}:
				default:
				}
				return
			}
		}
	}
}

// validateImports statically rejects any import not on the allowlist before
// the interpreter ever sees the code, mirroring yaegi_executor.go's
// validateImports check.
func (s *Sandbox) validateImports(code string) error {
	imports := extractImports(code)
	var forbidden []string
	for _, pkg := range imports {
		if !s.allowed[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v (allowed: %v)", forbidden, s.allowedList())
	}
	return nil
}

func (s *Sandbox) allowedList() []string {
	out := make([]string, 0, len(s.allowed))
	for pkg := range s.allowed {
		out = append(out, pkg)
	}
	return out
}

func extractImports(code string) []string {
	var imports []string
	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			imports = append(imports, strings.Trim(trimmed, `"`))
		case strings.HasPrefix(trimmed, "import "):
			pkg := strings.TrimPrefix(trimmed, "import ")
			imports = append(imports, strings.Trim(strings.TrimSpace(pkg), `"`))
		}
	}
	return imports
}

func wrapCode(code string) string {
	if strings.Contains(code, "package main") {
		return code
	}
	return "package main\n\n" + code
}
