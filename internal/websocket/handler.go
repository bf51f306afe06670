package websocket

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatrelay/internal/history"
	"chatrelay/internal/limiter"
	"chatrelay/pkg/interfaces"
	"chatrelay/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
}

// Options tunes per-connection behavior.
type Options struct {
	HistoryLimit int
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	WriteBuffer  int
}

// DefaultOptions match the documented service defaults.
func DefaultOptions() Options {
	return Options{
		HistoryLimit: 20,
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		WriteBuffer:  64,
	}
}

// Handler runs the per-connection control loop: accept, replay recent
// history, then receive -> validate -> admit -> publish until the peer
// disconnects.
type Handler struct {
	registry  *Registry
	store     history.Store
	limiter   *limiter.SlidingWindow
	publisher interfaces.Publisher
	opts      Options
	log       zerolog.Logger
}

func NewHandler(registry *Registry, store history.Store, lim *limiter.SlidingWindow, publisher interfaces.Publisher, opts Options, log zerolog.Logger) *Handler {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultOptions().HistoryLimit
	}
	return &Handler{
		registry:  registry,
		store:     store,
		limiter:   lim,
		publisher: publisher,
		opts:      opts,
		log:       log.With().Str("component", "websocket").Logger(),
	}
}

// HandleChat upgrades the request and drives the session until it ends.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	identity := clientIdentity(r)
	conn := NewConnection(wsConn, identity, h.opts.WriteBuffer, h.opts.WriteTimeout)
	log := h.log.With().Str("identity", identity).Str("session", conn.ID().String()).Logger()
	log.Info().Msg("client connected")

	// Replay strictly before registration: the connection's writer queue
	// must hold all history frames before any live broadcast can reach it.
	h.replayHistory(r.Context(), conn, log)
	h.registry.Add(conn)

	h.readLoop(r.Context(), conn, log)
}

// replayHistory sends the most recent persisted messages, oldest first,
// one per frame, to this connection only. A query failure degrades to an
// empty history; it never refuses the connection.
func (h *Handler) replayHistory(ctx context.Context, conn *Connection, log zerolog.Logger) {
	messages, err := h.store.Recent(ctx, h.opts.HistoryLimit)
	if err != nil {
		log.Warn().Err(err).Msg("history replay degraded to empty")
		return
	}
	for _, msg := range messages {
		if err := conn.SendJSON(msg); err != nil {
			log.Debug().Err(err).Msg("history replay interrupted")
			return
		}
	}
	log.Debug().Int("replayed", len(messages)).Msg("history replay complete")
}

// readLoop processes inbound frames until disconnect. Cleanup runs on
// every exit path, exactly once per session: the registry entry and the
// identity's rate-limiter state both go away with the connection.
func (h *Handler) readLoop(ctx context.Context, conn *Connection, log zerolog.Logger) {
	defer func() {
		h.registry.Remove(conn)
		h.limiter.Forget(conn.Identity())
		_ = conn.Close()
		log.Info().Msg("client disconnected")
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout)); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			// A closing peer is the expected way out of this loop; only
			// protocol-level surprises are worth more than a debug line.
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("connection terminated")
			} else {
				log.Debug().Msg("peer disconnected")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.handleFrame(ctx, conn, data, log)
	}
}

// handleFrame validates, rate-limits, and publishes one inbound frame.
// Every failure here is recovered locally with a sender-only notice; the
// loop never ends for anything short of a disconnect.
func (h *Handler) handleFrame(ctx context.Context, conn *Connection, data []byte, log zerolog.Logger) {
	now := time.Now()

	msg, err := types.DecodeMessage(data, now)
	if err != nil {
		log.Debug().Err(err).Msg("rejected invalid message")
		if err := conn.SendNotice("Validation error: " + err.Error()); err != nil {
			log.Debug().Err(err).Msg("failed to send validation notice")
		}
		return
	}

	if !h.limiter.Admit(conn.Identity(), now) {
		log.Debug().Msg("rate limit exceeded")
		if err := conn.SendNotice("Rate limit exceeded. Please slow down."); err != nil {
			log.Debug().Err(err).Msg("failed to send rate limit notice")
		}
		return
	}

	// Publish blocks until persistence and the whole fan-out batch have
	// settled, which is what keeps one sender's messages in order.
	if err := h.publisher.Publish(ctx, msg); err != nil {
		log.Error().Err(err).Msg("message not persisted, broadcast skipped")
		if err := conn.SendNotice("Message not delivered: storage unavailable."); err != nil {
			log.Debug().Err(err).Msg("failed to send storage notice")
		}
	}
}

// clientIdentity derives the rate-limiting identity from the transport
// origin. Not authentication: everything behind one address shares fate.
func clientIdentity(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
