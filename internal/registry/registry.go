package registry

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/axenix_signal/internal/domain"
	"github.com/immxrtalbeast/axenix_signal/internal/transport"
)

// Outbox is the delivery side of a connection.
type Outbox interface {
	Send(f transport.Frame) bool
	Close()
}

// Connection is a live client connection. Identity fields are immutable;
// State changes only through CompareAndSwapState and SwapState.
type Connection struct {
	ID          string
	RoomID      string
	UserID      string
	Out         Outbox
	ConnectedAt time.Time

	state   atomic.Int32
	removed atomic.Bool
}

func NewConnection(roomID, userID string, out Outbox) *Connection {
	return &Connection{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		UserID:      userID,
		Out:         out,
		ConnectedAt: time.Now().UTC(),
	}
}

func (c *Connection) State() domain.ConnState {
	return domain.ConnState(c.state.Load())
}

func (c *Connection) CompareAndSwapState(from, to domain.ConnState) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// SwapState sets the state and returns the previous one.
func (c *Connection) SwapState(to domain.ConnState) domain.ConnState {
	return domain.ConnState(c.state.Swap(int32(to)))
}

type identity struct {
	roomID string
	userID string
}

// snapshot is never mutated after it is published.
type snapshot struct {
	byID       map[string]*Connection
	byIdentity map[identity]*Connection
}

// Registry tracks live connections. Readers work on an immutable snapshot
// published with an atomic swap; writers are serialized by mu.
type Registry struct {
	mu       sync.Mutex
	snap     atomic.Pointer[snapshot]
	onRemove func(*Connection)
	log      *slog.Logger
}

// New builds a registry. onRemove runs once per unregistered connection,
// before its identity is released.
func New(onRemove func(*Connection), log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{onRemove: onRemove, log: log}
	r.snap.Store(&snapshot{
		byID:       map[string]*Connection{},
		byIdentity: map[identity]*Connection{},
	})
	return r
}

// SetOnRemove replaces the removal hook. It must be called before the
// registry is shared.
func (r *Registry) SetOnRemove(fn func(*Connection)) {
	r.onRemove = fn
}

func (r *Registry) Register(conn *Connection) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	key := identity{roomID: conn.RoomID, userID: conn.UserID}
	if _, ok := cur.byIdentity[key]; ok {
		return "", domain.Errorf(domain.CodeDuplicateIdentity, "user %q is already connected to room %q", conn.UserID, conn.RoomID)
	}

	next := cur.clone()
	next.byID[conn.ID] = conn
	next.byIdentity[key] = conn
	r.snap.Store(next)

	r.log.Debug("connection registered",
		slog.String("conn_id", conn.ID),
		slog.String("room_id", conn.RoomID),
		slog.String("user_id", conn.UserID),
	)
	return conn.ID, nil
}

// Unregister removes the connection. Calling it again, or for an unknown id,
// is a no-op.
func (r *Registry) Unregister(id string) {
	conn := r.Lookup(id)
	if conn == nil || !conn.removed.CompareAndSwap(false, true) {
		return
	}

	if r.onRemove != nil {
		r.onRemove(conn)
	}

	r.mu.Lock()
	cur := r.snap.Load()
	next := cur.clone()
	delete(next.byID, id)
	key := identity{roomID: conn.RoomID, userID: conn.UserID}
	if next.byIdentity[key] == conn {
		delete(next.byIdentity, key)
	}
	r.snap.Store(next)
	r.mu.Unlock()

	r.log.Debug("connection unregistered", slog.String("conn_id", id))
}

func (r *Registry) Lookup(id string) *Connection {
	return r.snap.Load().byID[id]
}

func (r *Registry) Len() int {
	return len(r.snap.Load().byID)
}

// InRoom returns the connections that claim roomID in their upgrade path,
// whatever their state.
func (r *Registry) InRoom(roomID string) []*Connection {
	var out []*Connection
	for _, c := range r.snap.Load().byID {
		if c.RoomID == roomID {
			out = append(out, c)
		}
	}
	return out
}

func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		byID:       make(map[string]*Connection, len(s.byID)+1),
		byIdentity: make(map[identity]*Connection, len(s.byIdentity)+1),
	}
	for k, v := range s.byID {
		next.byID[k] = v
	}
	for k, v := range s.byIdentity {
		next.byIdentity[k] = v
	}
	return next
}
