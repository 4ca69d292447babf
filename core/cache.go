package core

import "context"

type (
	// Cache keeps JSON-serializable values until Flush is called or their TTL expires.
	Cache interface {
		// Get decodes the value stored under key into dest, reporting whether it was found.
		// The returned generation must be handed back to Set when filling a miss.
		Get(ctx context.Context, key string, dest interface{}) (gen int64, found bool, err error)
		// Set stores val under key unless a Flush happened since gen was read.
		Set(ctx context.Context, gen int64, key string, val interface{}) error
		// Flush invalidates every key at once.
		Flush(ctx context.Context) error
	}

	// Invalidator is notified by write paths whose effects make cached reads stale.
	Invalidator interface {
		Invalidate(ctx context.Context)
	}
)

// NopInvalidator ignores invalidations.
type NopInvalidator struct{}

func (NopInvalidator) Invalidate(context.Context) {}
