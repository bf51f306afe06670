package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"chatrelay/pkg/types"
)

// SQLiteStore keeps the conversation log in a local SQLite database.
// All writes funnel through a single goroutine; SQLite allows one writer
// at a time and serializing here avoids busy-wait contention.
type SQLiteStore struct {
	db             *sql.DB
	conversationID string
	log            zerolog.Logger

	writes   chan writeOp
	shutdown chan struct{}
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	// now decides the bucket Recent queries against; swappable in tests.
	now func() time.Time
}

type writeOp struct {
	fn     func(*sql.DB) error
	result chan error
}

// NewSQLiteStore opens (or creates) the database at path and binds the
// store to one conversation id.
func NewSQLiteStore(path, conversationID string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// A single connection keeps the in-memory variant coherent and is
	// enough for one writer plus occasional replay reads.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}

	s := &SQLiteStore{
		db:             db,
		conversationID: conversationID,
		log:            log.With().Str("component", "history").Logger(),
		writes:         make(chan writeOp, 64),
		shutdown:       make(chan struct{}),
		now:            time.Now,
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

func (s *SQLiteStore) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.writes:
			op.result <- op.fn(s.db)
		case <-s.shutdown:
			return
		}
	}
}

func (s *SQLiteStore) executeWrite(ctx context.Context, fn func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("%w: store closed", ErrStorageUnavailable)
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writes <- writeOp{fn: fn, result: result}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, ctx.Err())
	case <-s.shutdown:
		return fmt.Errorf("%w: store shutting down", ErrStorageUnavailable)
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, ctx.Err())
	}
}

// Append records one accepted message in the current bucket. Failures
// wrap ErrStorageUnavailable; the caller must not broadcast the message.
func (s *SQLiteStore) Append(ctx context.Context, msg types.ChatMessage) error {
	rec := types.NewHistoryRecord(s.conversationID, msg)
	return s.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO messages (id, conversation_id, bucket, user, text, ts)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID.String(), rec.ConversationID, rec.Bucket, rec.User, rec.Text, rec.Timestamp.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("%w: insert message: %v", ErrStorageUnavailable, err)
		}
		return nil
	})
}

// Recent returns up to limit messages from the current month bucket,
// oldest-first. The storage query runs most-recent-first so LIMIT trims
// the old end, then the slice is reversed for replay order.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]types.ChatMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	bucket := types.BucketOf(s.now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT user, text, ts FROM messages
		 WHERE conversation_id = ? AND bucket = ?
		 ORDER BY ts DESC, rowid DESC
		 LIMIT ?`,
		s.conversationID, bucket, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query recent: %v", ErrStorageUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var messages []types.ChatMessage
	for rows.Next() {
		var (
			msg   types.ChatMessage
			nanos int64
		)
		if err := rows.Scan(&msg.User, &msg.Text, &nanos); err != nil {
			return nil, fmt.Errorf("%w: scan message: %v", ErrStorageUnavailable, err)
		}
		msg.Timestamp = time.Unix(0, nanos).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate messages: %v", ErrStorageUnavailable, err)
	}

	lo.Reverse(messages)
	return messages, nil
}

// Ping verifies backend connectivity for health checks.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Close stops the write loop and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close history database: %w", err)
	}
	s.log.Debug().Msg("history store closed")
	return nil
}
