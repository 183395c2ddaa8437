package worker

import (
	"context"
	"log"
	"time"

	"github.com/socialhub/internal/storage"
)

// ImageReferences lists the image names still referenced by accounts
type ImageReferences interface {
	ListImages(ctx context.Context) ([]string, error)
}

// ImageSweeper removes stored images no account references, such as files
// left behind when a best-effort delete failed. An image is removed only
// after it was seen unreferenced on two consecutive sweeps, so uploads whose
// account row is still being written survive.
type ImageSweeper struct {
	images   storage.ImageStore
	refs     ImageReferences
	interval time.Duration
	suspects map[string]struct{}
	stopChan chan struct{}
}

// NewImageSweeper creates a new orphan image sweeper
func NewImageSweeper(images storage.ImageStore, refs ImageReferences, interval time.Duration) *ImageSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ImageSweeper{
		images:   images,
		refs:     refs,
		interval: interval,
		suspects: make(map[string]struct{}),
		stopChan: make(chan struct{}),
	}
}

// Start begins the sweep loop
func (w *ImageSweeper) Start() {
	log.Printf("[ImageSweeper] Started with interval: %v", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.interval)
			if _, err := w.Sweep(ctx); err != nil {
				log.Printf("[ImageSweeper] Sweep failed: %v", err)
			}
			cancel()
		case <-w.stopChan:
			log.Println("[ImageSweeper] Stopped")
			return
		}
	}
}

// Stop stops the sweep loop
func (w *ImageSweeper) Stop() {
	close(w.stopChan)
}

// Sweep runs one pass and returns the names it deleted
func (w *ImageSweeper) Sweep(ctx context.Context) ([]string, error) {
	stored, err := w.images.List(ctx)
	if err != nil {
		return nil, err
	}

	referenced, err := w.refs.ListImages(ctx)
	if err != nil {
		return nil, err
	}

	inUse := make(map[string]struct{}, len(referenced))
	for _, name := range referenced {
		inUse[name] = struct{}{}
	}

	var deleted []string
	next := make(map[string]struct{})
	for _, name := range stored {
		if _, ok := inUse[name]; ok {
			continue
		}
		if _, seen := w.suspects[name]; !seen {
			next[name] = struct{}{}
			continue
		}
		if err := w.images.Delete(ctx, name); err != nil {
			log.Printf("[ImageSweeper] Failed to delete %s: %v", name, err)
			next[name] = struct{}{}
			continue
		}
		deleted = append(deleted, name)
	}
	w.suspects = next

	if len(deleted) > 0 {
		log.Printf("[ImageSweeper] Removed %d orphaned images", len(deleted))
	}
	return deleted, nil
}
