package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAcquire_Exclusive verifies a second holder waits until the first releases.
func TestAcquire_Exclusive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".locks", "llama-b1-arch86.lock")

	first, err := Acquire(t.Context(), path)
	require.NoError(t, err)
	require.Equal(t, path, first.Path())

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err = Acquire(ctx, path)
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan error, 1)

	go func() {
		second, acquireErr := Acquire(t.Context(), path)
		if acquireErr == nil {
			acquireErr = second.Release()
		}

		acquired <- acquireErr
	}()

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, first.Release())
	require.NoError(t, first.Release())

	select {
	case err = <-acquired:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("second acquirer never obtained the lock")
	}
}

// TestAcquire_IndependentKeys verifies different lock files never contend.
func TestAcquire_IndependentKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	a, err := Acquire(t.Context(), filepath.Join(dir, "a.lock"))
	require.NoError(t, err)

	defer a.Release()

	b, err := Acquire(t.Context(), filepath.Join(dir, "b.lock"))
	require.NoError(t, err)
	require.NoError(t, b.Release())
}
