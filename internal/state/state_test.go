package state

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldenbatch/internal/artifact"
	"goldenbatch/internal/models"
)

func bundle(version string) *artifact.Bundle {
	return &artifact.Bundle{Signature: models.GoldenSignature{Version: version}}
}

func TestStoreEmpty(t *testing.T) {
	s := NewStore()
	_, err := s.Current()
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.False(t, s.Status().Loaded)
}

func TestStoreSwap(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Swap(bundle("v1")))

	prev := s.Swap(bundle("v2"))
	require.NotNil(t, prev)
	assert.Equal(t, "v1", prev.Signature.Version)

	cur, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, "v2", cur.Signature.Version)
	assert.Equal(t, "v2", s.Status().SignatureVersion)
}

func TestReloadFailureKeepsCurrent(t *testing.T) {
	s := NewStore()
	s.Swap(bundle("v1"))

	_, err := s.Reload(func() (*artifact.Bundle, error) {
		return nil, errors.New("corrupt")
	})
	assert.Error(t, err)

	cur, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, "v1", cur.Signature.Version)

	b, err := s.Reload(func() (*artifact.Bundle, error) { return bundle("v2"), nil })
	require.NoError(t, err)
	assert.Equal(t, "v2", b.Signature.Version)
	cur, _ = s.Current()
	assert.Same(t, b, cur)
}

func TestConcurrentReadersSeeWholeGenerations(t *testing.T) {
	s := NewStore()
	s.Swap(bundle("v0"))

	var wg sync.WaitGroup
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				b, err := s.Current()
				if assert.NoError(t, err) {
					assert.NotEmpty(t, b.Signature.Version)
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		v := "v" + string(rune('a'+i%26))
		_, err := s.Reload(func() (*artifact.Bundle, error) { return bundle(v), nil })
		require.NoError(t, err)
	}
	wg.Wait()
}
