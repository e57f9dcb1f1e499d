package state

import (
	"errors"
	"sync"
	"sync/atomic"

	"goldenbatch/internal/artifact"
	"goldenbatch/internal/models"
)

// ErrNotLoaded is returned by Current before any bundle has been stored.
var ErrNotLoaded = errors.New("artifacts not loaded")

// Store holds the active artifact bundle. Readers take the current pointer
// without locking; a reload swaps in a complete new bundle, so a reader
// sees either the old generation or the new one, never a mix.
type Store struct {
	current atomic.Pointer[artifact.Bundle]

	// reloadMu serializes writers only.
	reloadMu sync.Mutex
}

func NewStore() *Store {
	return &Store{}
}

// Current returns the active bundle.
func (s *Store) Current() (*artifact.Bundle, error) {
	b := s.current.Load()
	if b == nil {
		return nil, ErrNotLoaded
	}
	return b, nil
}

// Swap installs b and returns the previous bundle (nil on first load).
func (s *Store) Swap(b *artifact.Bundle) *artifact.Bundle {
	return s.current.Swap(b)
}

// Reload builds a new bundle with load and swaps it in. On error the active
// bundle is left untouched.
func (s *Store) Reload(load func() (*artifact.Bundle, error)) (*artifact.Bundle, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	b, err := load()
	if err != nil {
		return nil, err
	}
	s.current.Store(b)
	return b, nil
}

// Status reports the active bundle, or not loaded.
func (s *Store) Status() models.ArtifactStatus {
	return s.current.Load().Status()
}
