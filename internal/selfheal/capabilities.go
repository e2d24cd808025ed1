package selfheal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"aura/internal/aura"
	"aura/internal/logging"
	"aura/internal/registry"
)

// CapabilityStore persists promoted Capabilities to AURA_DATA_DIR/capabilities.json;
// the Orchestrator passes List() to the Router for every utterance. It watches the file
// with fsnotify so an externally edited store, or a second AURA process
// sharing the same data directory, is picked up without a restart.
type CapabilityStore struct {
	mu       sync.Mutex
	path     string
	reg      *registry.Registry
	capsByName map[string]aura.Capability
	watcher  *fsnotify.Watcher
}

// capabilityOnDisk is the JSON wire shape for one persisted Capability.
type capabilityOnDisk struct {
	Name         string         `json:"name"`
	Triggers     []string       `json:"triggers"`
	ToolName     string         `json:"tool_name"`
	ArgsTemplate map[string]any `json:"args_template"`
	Source       string         `json:"source"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewCapabilityStore opens (or creates) dataDir/capabilities.json and loads
// any previously promoted Capabilities.
func NewCapabilityStore(dataDir string, reg *registry.Registry) (*CapabilityStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("selfheal: creating data dir: %w", err)
	}
	s := &CapabilityStore{
		path:       filepath.Join(dataDir, "capabilities.json"),
		reg:        reg,
		capsByName: make(map[string]aura.Capability),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Watch starts an fsnotify watch on the backing file, reloading on any
// write event. Callers should defer Close() on the returned store.
func (s *CapabilityStore) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("selfheal: fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("selfheal: watching %s: %w", filepath.Dir(s.path), err)
	}
	s.watcher = w

	log := logging.For(logging.CategorySelfHeal)
	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Name != s.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.load(); err != nil {
					log.Warnw("failed to reload capabilities.json", "error", err)
				} else {
					log.Infow("reloaded capabilities.json from external change")
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnw("capabilities watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops the watcher, if running.
func (s *CapabilityStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

// Promote idempotently adds a Capability: if a Capability with the exact
// same trigger set already exists, promotion is a no-op (spec's "promotion
// is idempotent" invariant). If an existing promoted Capability has the
// exact same trigger set but a different tool name, the promotion is
// rejected and the conflict is logged as a warning. Only promoted
// Capabilities are compared: built-in tools' patterns and keywords are not
// checked, and trigger sets that merely overlap are not treated as
// conflicts.
func (s *CapabilityStore) Promote(cap aura.Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logging.For(logging.CategorySelfHeal)
	key := triggerKey(cap.Triggers)

	for _, existing := range s.capsByName {
		if triggerKey(existing.Triggers) != key {
			continue
		}
		if existing.ToolName == cap.ToolName {
			log.Debugw("promotion already present, skipping", "name", cap.Name, "tool", cap.ToolName)
			return nil
		}
		log.Warnw("promotion rejected: trigger conflict with existing capability",
			"new_name", cap.Name, "new_tool", cap.ToolName,
			"existing_name", existing.Name, "existing_tool", existing.ToolName)
		return fmt.Errorf("selfheal: promotion %q conflicts with existing capability %q over triggers %v",
			cap.Name, existing.Name, cap.Triggers)
	}

	if cap.Source == "" {
		cap.Source = aura.CapabilityPromoted
	}
	if cap.CreatedAt.IsZero() {
		cap.CreatedAt = time.Now()
	}
	s.capsByName[cap.Name] = cap

	if err := s.persist(); err != nil {
		return err
	}
	log.Infow("promoted capability", "name", cap.Name, "tool", cap.ToolName, "triggers", cap.Triggers)
	return nil
}

// Revoke removes a promoted Capability by name.
func (s *CapabilityStore) Revoke(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.capsByName[name]; !ok {
		return fmt.Errorf("selfheal: no capability named %q", name)
	}
	delete(s.capsByName, name)
	return s.persist()
}

// List returns every Capability currently promoted, sorted by name for
// deterministic iteration (matching the Router's ordering contract: builtins
// then promoted capabilities, in a stable order).
func (s *CapabilityStore) List() []aura.Capability {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]aura.Capability, 0, len(s.capsByName))
	for _, c := range s.capsByName {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *CapabilityStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.capsByName = make(map[string]aura.Capability)
			return nil
		}
		return fmt.Errorf("selfheal: reading %s: %w", s.path, err)
	}
	if len(data) == 0 {
		s.capsByName = make(map[string]aura.Capability)
		return nil
	}

	var onDisk []capabilityOnDisk
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return fmt.Errorf("selfheal: parsing %s: %w", s.path, err)
	}

	caps := make(map[string]aura.Capability, len(onDisk))
	for _, c := range onDisk {
		caps[c.Name] = aura.Capability{
			Name:         c.Name,
			Triggers:     c.Triggers,
			ToolName:     c.ToolName,
			ArgsTemplate: c.ArgsTemplate,
			Source:       aura.CapabilitySource(c.Source),
			CreatedAt:    c.CreatedAt,
		}
	}
	s.capsByName = caps
	return nil
}

// persist must be called with s.mu held.
func (s *CapabilityStore) persist() error {
	out := make([]capabilityOnDisk, 0, len(s.capsByName))
	for _, c := range s.capsByName {
		out = append(out, capabilityOnDisk{
			Name:         c.Name,
			Triggers:     c.Triggers,
			ToolName:     c.ToolName,
			ArgsTemplate: c.ArgsTemplate,
			Source:       string(c.Source),
			CreatedAt:    c.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("selfheal: marshaling capabilities: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("selfheal: writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.path)
}

// triggerKey produces a stable, order-independent identity for a trigger
// set so Promote can compare two Capabilities for equality.
func triggerKey(triggers []string) string {
	sorted := append([]string(nil), triggers...)
	sort.Strings(sorted)
	key := ""
	for _, t := range sorted {
		key += "|" + t
	}
	return key
}
