package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/axenix_signal/internal/domain"
	"github.com/immxrtalbeast/axenix_signal/lib/logger/sl"
	"golang.org/x/time/rate"
)

// Handler consumes inbound frames of one connection. Handle is called from a
// single goroutine per connection, in arrival order. A non-nil error from
// Handle is a protocol violation and closes the connection.
type Handler interface {
	Handle(ctx context.Context, connID string, raw []byte) error
	Close(connID string)
}

type PeerConfig struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration
	// Maximum inbound message size.
	MaxMessageBytes int64
	// Outbound queue capacity in frames.
	QueueSize int
	// Inbound message rate; zero disables the limit.
	MessagesPerSecond float64
	Burst             int
}

func (c PeerConfig) WithDefaults() PeerConfig {
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 64 * 1024
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.Burst <= 0 {
		c.Burst = 20
	}
	return c
}

func (c PeerConfig) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// Peer is the delivery transport of one websocket connection.
type Peer struct {
	conn    *websocket.Conn
	cfg     PeerConfig
	queue   *Queue
	limiter *rate.Limiter
	log     *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func NewPeer(conn *websocket.Conn, cfg PeerConfig, log *slog.Logger, onDrop func()) *Peer {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = slog.Default()
	}
	limit := rate.Inf
	if cfg.MessagesPerSecond > 0 {
		limit = rate.Limit(cfg.MessagesPerSecond)
	}
	return &Peer{
		conn:    conn,
		cfg:     cfg,
		queue:   NewQueue(cfg.QueueSize, onDrop),
		limiter: rate.NewLimiter(limit, cfg.Burst),
		log:     log.With(slog.String("remote", conn.RemoteAddr().String())),
		done:    make(chan struct{}),
	}
}

// Send queues a frame for delivery. It never blocks.
func (p *Peer) Send(f Frame) bool {
	if !p.queue.Push(f) {
		p.log.Debug("frame not queued", slog.String("type", string(f.Type)))
		return false
	}
	return true
}

// Close stops the peer after the frames already queued are flushed.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.queue.Close()
		close(p.done)
	})
}

// Reject delivers an error to a connection that was never accepted and closes it.
func (p *Peer) Reject(err error) {
	defer p.conn.Close()

	if f, encErr := NewFrame(domain.ErrorEvent(err, "")); encErr == nil {
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteWait))
		_ = p.conn.WriteMessage(websocket.TextMessage, f.Data)
	}
	p.writeClose(websocket.ClosePolicyViolation, string(domain.CodeOf(err)))
}

// Run pumps the connection until it closes. It blocks the caller, which
// becomes the connection's only reader; h.Close is called exactly when the
// read side ends.
func (p *Peer) Run(ctx context.Context, connID string, h Handler) {
	log := p.log.With(slog.String("conn_id", connID))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.writePump(log)
	}()

	p.readPump(ctx, connID, h, log)
	h.Close(connID)
	p.Close()
	wg.Wait()

	log.Debug("peer stopped",
		slog.Int("unsent", p.queue.Len()),
		slog.Uint64("dropped", p.queue.Dropped()),
	)
}

func (p *Peer) readPump(ctx context.Context, connID string, h Handler, log *slog.Logger) {
	p.conn.SetReadLimit(p.cfg.MaxMessageBytes)
	_ = p.conn.SetReadDeadline(time.Now().Add(p.cfg.PongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(p.cfg.PongWait))
	})

	for {
		msgType, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("read failed", sl.Err(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			p.writeClose(websocket.CloseUnsupportedData, "expected text message")
			return
		}
		if !p.limiter.Allow() {
			log.Warn("rate limit exceeded")
			p.writeClose(websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}
		if err := h.Handle(ctx, connID, data); err != nil {
			log.Warn("protocol violation", sl.Err(err))
			p.writeClose(websocket.ClosePolicyViolation, string(domain.CodeOf(err)))
			return
		}
	}
}

func (p *Peer) writePump(log *slog.Logger) {
	ticker := time.NewTicker(p.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case <-p.queue.Ready():
			if !p.flush(log) {
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.done:
			p.flush(log)
			p.writeClose(websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (p *Peer) flush(log *slog.Logger) bool {
	for {
		f, ok := p.queue.Pop()
		if !ok {
			return true
		}
		_ = p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, f.Data); err != nil {
			log.Debug("write failed", sl.Err(err))
			return false
		}
	}
}

func (p *Peer) writeClose(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(p.cfg.WriteWait))
}
