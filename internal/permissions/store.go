// Package permissions persists the command patterns a user chose to
// always allow, so matching commands skip the approval menu.
package permissions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Rorical/RoriAgent/internal/logging"
)

type Rule struct {
	Pattern string    `yaml:"pattern"`
	AddedAt time.Time `yaml:"added_at"`
}

type rulesFile struct {
	Commands []Rule `yaml:"commands"`
}

// Store is the in-memory view of the rules file. Safe for concurrent use.
type Store struct {
	path string
	log  *zap.Logger

	mu    sync.RWMutex
	rules []Rule
}

// Open loads path. A missing file is an empty rule set.
func Open(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{path: path, log: logging.OrNop(logger).Named("permissions")}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.rules = nil
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read permissions: %w", err)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.rules = f.Commands
	s.mu.Unlock()
	s.log.Debug("permissions loaded", zap.Int("rules", len(f.Commands)))
	return nil
}

// Allows reports whether command is covered by a remembered pattern:
// its words start with all of the pattern's words.
func (s *Store) Allows(command string) bool {
	words := strings.Fields(command)
	if len(words) == 0 {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if hasWordPrefix(words, strings.Fields(r.Pattern)) {
			return true
		}
	}
	return false
}

func hasWordPrefix(words, prefix []string) bool {
	if len(prefix) == 0 || len(prefix) > len(words) {
		return false
	}
	for i, p := range prefix {
		if words[i] != p {
			return false
		}
	}
	return true
}

// Remember adds pattern and writes the file. Adding a pattern that is
// already present is a no-op.
func (s *Store) Remember(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return errors.New("empty command pattern")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.Pattern == pattern {
			return nil
		}
	}
	rules := append(append([]Rule(nil), s.rules...), Rule{Pattern: pattern, AddedAt: time.Now().UTC()})
	if err := s.write(rules); err != nil {
		return err
	}
	s.rules = rules
	s.log.Info("remembered command pattern", zap.String("pattern", pattern))
	return nil
}

func (s *Store) Patterns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Pattern
	}
	return out
}

// write replaces the file atomically. Caller holds s.mu.
func (s *Store) write(rules []Rule) error {
	data, err := yaml.Marshal(rulesFile{Commands: rules})
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create permissions directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write permissions: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace permissions: %w", err)
	}
	return nil
}

// Watch reloads the store whenever the file changes on disk, until ctx
// is done. The directory is watched so editors that replace the file are
// picked up too.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create permissions directory: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	name := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.Warn("permissions reload failed", zap.Error(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("permissions watcher error", zap.Error(err))
		}
	}
}
