package artifact

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcherReloadsOnArtifactWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := DefaultPaths(t.TempDir())
	var calls atomic.Int32
	w, err := NewWatcher(p, func() { calls.Add(1) }, nil)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// give Start time to register the directory
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(p.Dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, SaveSignature(p.SignaturePath(), testSignature()))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := DefaultPaths(t.TempDir())
	var calls atomic.Int32
	w, err := NewWatcher(p, func() { calls.Add(1) }, nil)
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(p.Dir, "README"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, calls.Load())

	require.NoError(t, w.Close())
	require.NoError(t, <-done)
	cancel()
}

func TestWatcherWatchesEveryArtifactDirectory(t *testing.T) {
	defer goleak.VerifyNone(t)

	modelDir := t.TempDir()
	p := DefaultPaths(t.TempDir())
	p.RiskModel = filepath.Join(modelDir, "risk.json")

	var calls atomic.Int32
	w, err := NewWatcher(p, func() { calls.Add(1) }, nil)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	// same base name as the default risk model, but not a configured path
	require.NoError(t, os.WriteFile(filepath.Join(p.Dir, DefaultRiskModelFile), []byte("{}"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, calls.Load())

	require.NoError(t, os.WriteFile(p.RiskModelPath(), []byte("{}"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, w.Close())
}
