// Package broadcast delivers accepted messages to every live session.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"chatrelay/internal/history"
	"chatrelay/internal/websocket"
	"chatrelay/pkg/types"
)

// Dispatcher persists each accepted message, then fans it out to the
// registry membership as of publish time. Persistence is the source of
// truth for replay, so it strictly precedes broadcast; the two are not
// transactional, and a crash between them loses the broadcast only.
type Dispatcher struct {
	store    history.Store
	registry *websocket.Registry
	log      zerolog.Logger
}

func NewDispatcher(store history.Store, registry *websocket.Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		registry: registry,
		log:      log.With().Str("component", "broadcast").Logger(),
	}
}

// Publish appends msg to history and delivers it to every session in the
// current registry snapshot, concurrently, at most once per recipient.
// It blocks until the whole batch has settled. An error means the append
// failed and nothing was broadcast; a recipient that vanished mid-fan-out
// is an expected race and is only logged.
func (d *Dispatcher) Publish(ctx context.Context, msg types.ChatMessage) error {
	if err := d.store.Append(ctx, msg); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	recipients := d.registry.Snapshot()
	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	for _, conn := range recipients {
		wg.Add(1)
		go func(c *websocket.Connection) {
			defer wg.Done()
			if err := c.Send(data); err != nil {
				// Stale snapshot member, usually a peer that disconnected
				// after the snapshot was taken. No retry, no redelivery.
				failed.Add(1)
				d.log.Debug().Err(err).Str("session", c.ID().String()).Msg("delivery failed")
			}
		}(conn)
	}
	wg.Wait()

	if n := failed.Load(); n > 0 {
		d.log.Warn().Int64("failed", n).Int("recipients", len(recipients)).Str("user", msg.User).Msg("partial fan-out")
	} else {
		d.log.Debug().Int("recipients", len(recipients)).Str("user", msg.User).Msg("message broadcast")
	}
	return nil
}
