package catalog

import (
	"sync/atomic"

	"dreambot/internal/infra"
)

// Store serves catalog snapshots and swaps them atomically on reload. Callers
// hold on to a snapshot for as long as they need a consistent view.
type Store struct {
	path    string
	current atomic.Pointer[Catalog]
	logger  *infra.Logger
}

// Open loads the catalog at path.
func Open(path string, logger *infra.Logger) (*Store, error) {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	cat, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, logger: logger}
	s.current.Store(cat)
	logger.Info().Str("path", path).Int("models", len(cat.Models)).Int("aliases", len(cat.Aliases)).Msg("catalog: loaded")
	return s, nil
}

// NewStatic wraps an already built catalog. It cannot be reloaded.
func NewStatic(cat *Catalog) *Store {
	s := &Store{logger: infra.DiscardLogger()}
	s.current.Store(cat)
	return s
}

// Snapshot returns the current catalog.
func (s *Store) Snapshot() *Catalog {
	return s.current.Load()
}

// Reload re-reads the catalog file. On error the previous catalog stays active.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	cat, err := Load(s.path)
	if err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("catalog: reload failed")
		return err
	}
	s.current.Store(cat)
	s.logger.Info().Str("path", s.path).Int("models", len(cat.Models)).Msg("catalog: reloaded")
	return nil
}
