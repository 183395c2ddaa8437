package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/socialhub/internal/config"
)

var (
	ErrInvalidName    = errors.New("invalid image name")
	ErrUnknownBackend = errors.New("unknown uploads backend")
)

// ImageStore persists uploaded avatar images. Images are referenced by the
// server-assigned filename only.
type ImageStore interface {
	// Save stores r under a fresh name derived from originalName and returns that name
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	// Delete removes name; a missing image is not an error
	Delete(ctx context.Context, name string) error
	// List returns the names of every stored image
	List(ctx context.Context) ([]string, error)
}

// New builds the ImageStore selected by cfg.Backend
func New(ctx context.Context, cfg config.UploadsConfig) (ImageStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "local":
		return NewLocalStore(cfg.Dir)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// validName rejects anything that could escape the image namespace
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
