// Package push delivers notification payloads to currently-connected
// recipients. Delivery is fire-and-forget: a recipient that is offline or
// slow simply misses the push, the durable record in the sink is the source
// of truth.
package push

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"taskping/internal/model"
	"taskping/pkg/logx"
)

type Result int

const (
	Delivered Result = iota
	NotConnected
	Failed
)

func (r Result) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case NotConnected:
		return "not_connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type Config struct {
	// SendTimeout bounds a single Send call, including the rate-limiter wait.
	SendTimeout time.Duration
	RatePerSec  int
}

// Client is one connected recipient session. A user may hold several clients
// at once (e.g. two browser tabs); Send fans out to all of them.
type Client struct {
	userID int64
	ch     chan model.NotificationPayload
}

func (c *Client) UserID() int64 { return c.userID }

// Receive returns the channel the hub delivers payloads on. The transport
// that owns the client drains it and forwards to the wire.
func (c *Client) Receive() <-chan model.NotificationPayload { return c.ch }

type Hub struct {
	mu    sync.RWMutex
	conns map[int64]map[*Client]struct{}

	cfg     Config
	limiter *rate.Limiter
	log     logx.Logger
}

func NewHub(cfg Config, log logx.Logger) *Hub {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 2 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 50
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Hub{
		conns:   map[int64]map[*Client]struct{}{},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

func (h *Hub) Connect(userID int64) *Client {
	c := &Client{userID: userID, ch: make(chan model.NotificationPayload, 16)}
	h.mu.Lock()
	set := h.conns[userID]
	if set == nil {
		set = map[*Client]struct{}{}
		h.conns[userID] = set
	}
	set[c] = struct{}{}
	n := len(set)
	h.mu.Unlock()
	h.log.Debug("client connected", logx.Int64("user", userID), logx.Int("sessions", n))
	return c
}

func (h *Hub) Disconnect(c *Client) {
	if c == nil {
		return
	}
	h.mu.Lock()
	if set, ok := h.conns[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, c.userID)
		}
	}
	h.mu.Unlock()
	h.log.Debug("client disconnected", logx.Int64("user", c.userID))
}

func (h *Hub) Connected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// Send pushes a payload to every session of userID. It returns Delivered when
// at least one session accepted it, NotConnected when the user has no
// sessions, and Failed when sessions exist but none accepted within the send
// timeout.
func (h *Hub) Send(ctx context.Context, userID int64, p model.NotificationPayload) Result {
	h.mu.RLock()
	set := h.conns[userID]
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return NotConnected
	}

	sctx, cancel := context.WithTimeout(ctx, h.cfg.SendTimeout)
	defer cancel()

	if err := h.limiter.Wait(sctx); err != nil {
		h.log.Warn("push rate wait aborted", logx.Int64("user", userID), logx.Err(err))
		return Failed
	}

	delivered := 0
	for _, c := range clients {
		select {
		case c.ch <- p:
			delivered++
		case <-sctx.Done():
			h.log.Warn("push send timed out",
				logx.Int64("user", userID),
				logx.Int64("task", p.Task.ID),
				logx.String("kind", string(p.Kind)))
		}
	}
	if delivered == 0 {
		return Failed
	}
	return Delivered
}
