// Package logging provides config-driven categorized logging for AURA.
// Every subsystem logs through its own Category so operators can scope
// `tail -f` to one layer without grepping. Logging is a thin wrapper over
// go.uber.org/zap; when debug mode is off only info and above reach the
// sink.
package logging

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies which subsystem emitted a log line.
type Category string

const (
	CategoryOrchestrator Category = "orchestrator"
	CategoryRouter       Category = "router"
	CategoryRegistry     Category = "registry"
	CategoryExecutor     Category = "executor"
	CategorySandbox      Category = "sandbox"
	CategoryOSBoundary   Category = "osboundary"
	CategoryCodegen      Category = "codegen"
	CategoryPlanner      Category = "planner"
	CategorySelfHeal     Category = "selfheal"
	CategorySession      Category = "session"
	CategoryLLM          Category = "llm"
)

var (
	mu      sync.RWMutex
	base    *zap.Logger
	debug   bool
	dataDir string
)

// Init wires the global logger. dataDir is AURA_DATA_DIR; logs/aura.jsonl
// is created (append-only) underneath it. debugMode enables debug-level
// output; otherwise only info and above are logged.
func Init(dir string, debugMode bool) error {
	mu.Lock()
	defer mu.Unlock()

	dataDir = dir
	debug = debugMode

	logsDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return err
	}

	level := zapcore.InfoLevel
	if debugMode {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	fileSink := zapcore.AddSync(&lockedFile{path: filepath.Join(logsDir, "aura.jsonl")})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileSink, level)

	base = zap.New(core)
	return nil
}

// For returns a logger scoped to a category, with a "category" field set.
// Safe to call before Init; falls back to a no-op logger.
func For(cat Category) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	if base == nil {
		return zap.NewNop().Sugar()
	}
	return base.With(zap.String("category", string(cat))).Sugar()
}

// lockedFile reopens the target file for every write, which is good enough
// for AURA's single-process append-only audit trail and avoids holding a
// long-lived descriptor across log rotation by an external tool.
type lockedFile struct {
	mu   sync.Mutex
	path string
}

func (f *lockedFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer fh.Close()
	return fh.Write(p)
}

func (f *lockedFile) Sync() error { return nil }
