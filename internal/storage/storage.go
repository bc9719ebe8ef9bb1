package storage

import "context"

// Store persists generated artifacts and returns opaque references. The
// production deployment points this at object storage; the filesystem
// implementation serves development and tests.
type Store interface {
	// Put persists data under key and returns the canonical reference.
	Put(ctx context.Context, key string, data []byte) (string, error)

	// Get reads back the artifact at a reference previously returned by Put.
	Get(ctx context.Context, ref string) ([]byte, error)
}
