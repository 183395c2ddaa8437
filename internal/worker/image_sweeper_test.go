package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/socialhub/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRefs []string

func (r staticRefs) ListImages(context.Context) ([]string, error) {
	return r, nil
}

func TestImageSweeper_RemovesOrphansOnSecondSighting(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	kept, err := store.Save(ctx, "kept.png", strings.NewReader("a"))
	require.NoError(t, err)
	orphan, err := store.Save(ctx, "orphan.png", strings.NewReader("b"))
	require.NoError(t, err)

	sweeper := NewImageSweeper(store, staticRefs{kept}, time.Minute)

	deleted, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	deleted, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{orphan}, deleted)

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{kept}, names)
}

func TestImageSweeper_ForgetsAdoptedImages(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save(ctx, "new.jpg", strings.NewReader("a"))
	require.NoError(t, err)

	refs := staticRefs{}
	sweeper := NewImageSweeper(store, &refs, time.Minute)

	_, err = sweeper.Sweep(ctx)
	require.NoError(t, err)

	// the account row referencing the upload lands between sweeps
	refs = staticRefs{name}
	deleted, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestImageSweeper_StartStop(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	sweeper := NewImageSweeper(store, staticRefs{}, 10*time.Millisecond)
	done := make(chan struct{})
	go func() {
		sweeper.Start()
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
