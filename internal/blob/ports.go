package blob

import (
	"context"
	"errors"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("blob store closed")

// Ports for durable storage adapters.
type (
	// Store is an opaque get/set-by-key byte store. Load reports found=false
	// for a key that was never saved; that is not an error.
	Store interface {
		Load(ctx context.Context, key string) (data []byte, found bool, err error)
		Save(ctx context.Context, key string, data []byte) error
	}

	// Pinger is implemented by stores that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
