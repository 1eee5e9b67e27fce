package config

import (
	"fmt"
	"log/slog"
	"sync"
)

// Store holds the live gateway document. Reads take a shared lock and
// return an isolated snapshot, so many concurrent request handlers never
// block each other; a replacement takes the exclusive lock for the
// duration of the persist-and-swap.
//
// Replace is persist-then-commit: the new document is written to disk
// first and the in-memory value only swaps once the write succeeded. A
// persist failure therefore leaves the previous document in effect and
// memory never diverges from disk.
type Store struct {
	mu      sync.RWMutex
	path    string
	current GatewayConfig
}

// NewStore loads the gateway document from path and returns a Store bound
// to it. A missing file yields the default document; a corrupt file is an
// error.
func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, current: cfg}, nil
}

// Path returns the on-disk location of the gateway document.
func (s *Store) Path() string {
	return s.path
}

// Get returns a snapshot of the current document. The snapshot is a deep
// copy: a request handler iterating its provider list is unaffected by a
// concurrent Replace.
func (s *Store) Get() GatewayConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Replace validates the new document, persists it, and swaps it in. On
// validation or persistence failure the previous document remains in
// effect and the error is returned to the caller.
func (s *Store) Replace(cfg GatewayConfig) error {
	if err := Validate(&cfg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := Save(s.path, cfg); err != nil {
		return fmt.Errorf("gateway config not applied: %w", err)
	}
	s.current = cfg.Clone()
	return nil
}

// Reload re-reads the document from disk, replacing the in-memory value.
// It is used by the file watcher when the document is edited externally.
// A missing file resets to defaults; a corrupt file is an error and the
// in-memory value is left untouched.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	if err := Validate(&cfg); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()

	slog.Info("gateway config reloaded from disk",
		"path", s.path,
		"providers", len(cfg.Providers),
		"enabled", cfg.Enabled,
	)
	return nil
}
