package types

import (
	"time"

	"github.com/google/uuid"
)

// AnonymousUser is the label applied to messages whose sender did not
// supply one. The user field is self-asserted, not an identity.
const AnonymousUser = "anon"

// ChatMessage is one accepted chat message as it travels between
// clients and into history. Treated as immutable after creation.
type ChatMessage struct {
	Text      string    `json:"text"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryRecord is the durable form of a ChatMessage: the message plus
// the conversation partition key and a coarse year-month bucket that
// bounds the cost of recency queries. Append-only, never mutated.
type HistoryRecord struct {
	ID             uuid.UUID
	ConversationID string
	Bucket         string
	User           string
	Text           string
	Timestamp      time.Time
}

// NewHistoryRecord builds the durable record for an accepted message.
// The UUID disambiguates records that land on the same timestamp.
func NewHistoryRecord(conversationID string, msg ChatMessage) HistoryRecord {
	return HistoryRecord{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Bucket:         BucketOf(msg.Timestamp),
		User:           msg.User,
		Text:           msg.Text,
		Timestamp:      msg.Timestamp,
	}
}

// Message returns the wire-facing view of the record.
func (r HistoryRecord) Message() ChatMessage {
	return ChatMessage{Text: r.Text, User: r.User, Timestamp: r.Timestamp}
}

// BucketOf maps a timestamp to its calendar year-month bucket key.
func BucketOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}
