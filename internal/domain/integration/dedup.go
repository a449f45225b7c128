package integration

import (
	"context"
	"time"
)

// EventDedupStore remembers processed webhook event ids so redelivered
// events can be suppressed. MarkProcessed is atomic: exactly one caller
// observes true for a given id within the TTL.
type EventDedupStore interface {
	// MarkProcessed records the event id. True means the id was new.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether the id was recorded and has not expired.
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	Close() error
}
