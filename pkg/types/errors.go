package types

import "errors"

var (
	ErrInvalidMessage   = errors.New("message failed schema validation")
	ErrInvalidTimestamp = errors.New("timestamp is not a valid RFC 3339 instant")
)
