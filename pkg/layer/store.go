package layer

import "context"

// Store is a second cache tier behind the in-memory map, shared between
// processes. LayerCache consults it inside a build and writes successful
// builds through to it.
type Store interface {
	// Load returns the stored layer, or an error matching ErrNotFound.
	Load(ctx context.Context, key string) (*Layer, error)

	// Save stores a layer under its key until it expires.
	Save(ctx context.Context, l *Layer) error

	// Delete removes a single layer.
	Delete(ctx context.Context, key string) error

	// Flush removes every stored layer.
	Flush(ctx context.Context) error
}
