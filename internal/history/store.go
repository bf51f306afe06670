// Package history persists the conversation's append-only message log
// and answers bounded recency queries for replay on connect.
package history

import (
	"context"
	"errors"

	"chatrelay/pkg/types"
)

// ErrStorageUnavailable marks append or query failures of the durable
// backend. Not retried by this service; callers decide whether to notify
// the sender (append) or degrade to an empty history (query).
var ErrStorageUnavailable = errors.New("history storage unavailable")

// Store is the narrow boundary in front of the durable log. The backend
// behind it is an external collaborator; only append and recency-query
// semantics are assumed.
type Store interface {
	// Append durably records an accepted message.
	Append(ctx context.Context, msg types.ChatMessage) error

	// Recent returns up to limit of the most recent messages in ascending
	// timestamp order. The lookup is bounded to the current calendar-month
	// bucket, so a conversation whose latest messages straddle a month
	// boundary may replay fewer than limit. Accepted approximation that
	// keeps the query cost independent of total history size.
	Recent(ctx context.Context, limit int) ([]types.ChatMessage, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
