// Package interfaces holds the cross-component contracts that keep the
// websocket layer decoupled from the broadcast machinery.
package interfaces

import (
	"context"

	"chatrelay/pkg/types"
)

// Publisher accepts an admitted message for persistence and fan-out to
// every currently registered session. An error means the message was not
// persisted and was not broadcast; per-recipient delivery failures are
// absorbed by the implementation and never surface here.
type Publisher interface {
	Publish(ctx context.Context, msg types.ChatMessage) error
}
