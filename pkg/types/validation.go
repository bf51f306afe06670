package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validator instance shared across all decode paths. Struct tags are the
// single source of truth for the wire schema bounds.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Inbound is the wire shape of a client frame. User and timestamp are
// optional on the wire but always present on the resulting ChatMessage.
type Inbound struct {
	Text      string `json:"text" validate:"required,max=500"`
	User      string `json:"user,omitempty" validate:"omitempty,min=1,max=30"`
	Timestamp string `json:"timestamp,omitempty"`
}

// DecodeMessage parses and validates a raw inbound frame, applying
// defaults: a missing user becomes AnonymousUser, a missing timestamp
// the receipt time in UTC. Failures wrap ErrInvalidMessage, or
// ErrInvalidTimestamp when the frame parsed but its timestamp did not;
// either way the caller treats them as recoverable validation errors.
func DecodeMessage(raw []byte, receivedAt time.Time) (ChatMessage, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return ChatMessage{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := validate.Struct(&in); err != nil {
		return ChatMessage{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	msg := ChatMessage{
		Text:      in.Text,
		User:      in.User,
		Timestamp: receivedAt.UTC(),
	}
	if msg.User == "" {
		msg.User = AnonymousUser
	}
	if in.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, in.Timestamp)
		if err != nil {
			return ChatMessage{}, fmt.Errorf("%w: %q: %v", ErrInvalidTimestamp, in.Timestamp, err)
		}
		msg.Timestamp = ts.UTC()
	}
	return msg, nil
}
