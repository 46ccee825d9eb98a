package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/immxrtalbeast/axenix_signal/internal/domain"
	"github.com/immxrtalbeast/axenix_signal/internal/media"
	"github.com/immxrtalbeast/axenix_signal/internal/metrics"
	"github.com/immxrtalbeast/axenix_signal/internal/registry"
	"github.com/immxrtalbeast/axenix_signal/internal/repository"
	"github.com/immxrtalbeast/axenix_signal/internal/transport"
	"github.com/immxrtalbeast/axenix_signal/lib/logger/sl"
)

var ErrUnknownConnection = errors.New("unknown connection")

type Config struct {
	// A connection that has not joined within this window is closed.
	// Zero disables the timer.
	PendingJoinTimeout time.Duration
	// Bound for journal writes and for engine calls made during cleanup.
	CleanupTimeout time.Duration
}

// Signaling routes inbound messages of registered connections: it validates
// them against the connection state, applies membership changes through the
// RoomManager, relays negotiation messages, and drives the media engine.
type Signaling struct {
	cfg      Config
	registry *registry.Registry
	rooms    *RoomManager
	engine   media.Engine
	journal  repository.EventJournal
	metrics  *metrics.Metrics
	log      *slog.Logger

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

// NewSignaling wires the router and installs its cleanup as the registry's
// removal hook.
func NewSignaling(
	cfg Config,
	reg *registry.Registry,
	rooms *RoomManager,
	engine media.Engine,
	journal repository.EventJournal,
	m *metrics.Metrics,
	log *slog.Logger,
) *Signaling {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = 5 * time.Second
	}
	s := &Signaling{
		cfg:      cfg,
		registry: reg,
		rooms:    rooms,
		engine:   engine,
		journal:  journal,
		metrics:  m,
		log:      log,
		timers:   make(map[string]*time.Timer),
	}
	reg.SetOnRemove(s.cleanup)
	return s
}

func (s *Signaling) Snapshot(roomID string) (domain.RoomSnapshot, bool) {
	return s.rooms.Snapshot(roomID)
}

func (s *Signaling) List() []domain.RoomSnapshot {
	return s.rooms.List()
}

// Pending returns the users connected to roomID that have not joined yet,
// sorted by user id.
func (s *Signaling) Pending(roomID string) []string {
	var out []string
	for _, c := range s.registry.InRoom(roomID) {
		if c.State() == domain.StateConnecting {
			out = append(out, c.UserID)
		}
	}
	sort.Strings(out)
	return out
}

// Accept registers a freshly upgraded connection in Connecting state.
func (s *Signaling) Accept(roomID, userID string, out registry.Outbox) (*registry.Connection, error) {
	const op = "service.signaling.accept"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("user_id", userID),
	)

	conn := registry.NewConnection(roomID, userID, out)
	if _, err := s.registry.Register(conn); err != nil {
		log.Info("connection rejected", sl.Err(err))
		s.metrics.ErrorSent(domain.CodeOf(err))
		return nil, err
	}
	s.metrics.ConnectionOpened()
	s.armJoinTimer(conn)

	log.Info("connection accepted", slog.String("conn_id", conn.ID))
	return conn, nil
}

// Close tears the connection down. It is safe to call more than once.
func (s *Signaling) Close(connID string) {
	s.registry.Unregister(connID)
}

// Handle processes one inbound frame. Only a frame for an unknown
// connection is fatal; every other failure is reported to the sender.
func (s *Signaling) Handle(ctx context.Context, connID string, raw []byte) error {
	const op = "service.signaling.handle"

	conn := s.registry.Lookup(connID)
	if conn == nil {
		return ErrUnknownConnection
	}
	log := s.log.With(
		slog.String("op", op),
		slog.String("conn_id", connID),
		slog.String("room_id", conn.RoomID),
		slog.String("user_id", conn.UserID),
	)

	msg, err := domain.DecodeMessage(raw)
	if err != nil {
		s.metrics.MessageReceived("")
		log.Debug("malformed message", sl.Err(err))
		s.replyError(conn, err, "")
		return nil
	}
	s.metrics.MessageReceived(msg.Type)
	log.Debug("message received", slog.String("type", string(msg.Type)))

	if err := checkState(conn.State(), msg.Type); err != nil {
		s.replyError(conn, err, msg.Type)
		return nil
	}

	switch msg.Type {
	case domain.TypeJoin:
		err = s.join(ctx, conn, msg)
	case domain.TypeLeave:
		err = s.leave(ctx, conn)
	case domain.TypeOffer, domain.TypeAnswer, domain.TypeIceCandidate:
		err = s.relay(conn, msg)
	case domain.TypeProduceRequest:
		err = s.produce(ctx, conn, msg)
	case domain.TypeConsumeRequest:
		err = s.consume(ctx, conn, msg)
	case domain.TypeConnectTransport:
		err = s.connectTransport(ctx, conn, msg)
	case domain.TypeChat:
		err = s.chat(ctx, conn, msg)
	case domain.TypeError:
		log.Info("client reported error", slog.String("code", string(msg.Code)), slog.String("message", msg.Reason))
	}
	if err != nil {
		log.Info("message rejected", slog.String("type", string(msg.Type)), sl.Err(err))
		s.replyError(conn, err, msg.Type)
	}
	return nil
}

func checkState(state domain.ConnState, t domain.MessageType) error {
	switch state {
	case domain.StateConnecting:
		if t == domain.TypeJoin || t == domain.TypeError {
			return nil
		}
		return domain.Errorf(domain.CodeInvalidState, "%s requires a joined connection", t)
	case domain.StateJoined:
		if t == domain.TypeJoin {
			return domain.Errorf(domain.CodeInvalidState, "already joined")
		}
		return nil
	default:
		return domain.Errorf(domain.CodeInvalidState, "connection is %s", state)
	}
}

func (s *Signaling) join(ctx context.Context, conn *registry.Connection, msg *domain.Message) error {
	role := domain.DefaultRole
	if msg.Role != nil {
		role = *msg.Role
	}
	p := domain.NewParticipant(conn.UserID, conn.ID, msg.DisplayName, role)

	// The state change and the notices happen under the room lock: a
	// connection closing concurrently either never shows up in the room or
	// is seen as Joined by cleanup and announced as gone.
	res, err := s.rooms.Join(conn.RoomID, p, func(res JoinResult) bool {
		if !conn.CompareAndSwapState(domain.StateConnecting, domain.StateJoined) {
			return false
		}
		s.sendTo(conn, domain.Event{
			Type:         domain.TypeRoster,
			Room:         conn.RoomID,
			UserID:       conn.UserID,
			Seq:          res.Seq,
			Participants: res.Roster,
		})
		s.broadcast(res.Others, domain.Event{
			Type:        domain.TypeParticipantJoined,
			Room:        conn.RoomID,
			UserID:      conn.UserID,
			DisplayName: p.DisplayName,
			Seq:         res.Seq,
		})
		return true
	})
	if err != nil {
		return err
	}
	s.stopJoinTimer(conn.ID)
	s.metrics.SetRooms(s.rooms.Len())

	ev := domain.NewRoomEvent(conn.RoomID, res.Seq, domain.RoomEventJoined, conn.UserID)
	ev.Epoch = res.Epoch
	ev.Payload = p.DisplayName
	s.record(ctx, ev)
	return nil
}

// leave handles an explicit Leave: the participant is removed, the others are
// told once, and the connection is closed.
func (s *Signaling) leave(ctx context.Context, conn *registry.Connection) error {
	if !conn.CompareAndSwapState(domain.StateJoined, domain.StateLeaving) {
		return domain.Errorf(domain.CodeInvalidState, "connection is %s", conn.State())
	}
	s.leaveRoom(ctx, conn)
	conn.Out.Close()
	s.registry.Unregister(conn.ID)
	return nil
}

func (s *Signaling) leaveRoom(ctx context.Context, conn *registry.Connection) {
	res := s.rooms.Leave(conn.RoomID, conn.UserID, conn.ID, func(res LeaveResult) {
		s.broadcast(res.Remaining, domain.Event{
			Type:        domain.TypeParticipantLeft,
			Room:        conn.RoomID,
			UserID:      conn.UserID,
			DisplayName: res.Participant.DisplayName,
			Seq:         res.Seq,
		})
	})
	if !res.Found {
		return
	}
	s.metrics.SetRooms(s.rooms.Len())
	ev := domain.NewRoomEvent(conn.RoomID, res.Seq, domain.RoomEventLeft, conn.UserID)
	ev.Epoch = res.Epoch
	s.record(ctx, ev)
	s.releaseMedia(conn.RoomID, res)
}

// releaseMedia frees engine resources of a departed participant. Failures are
// logged only: the membership change already happened.
func (s *Signaling) releaseMedia(roomID string, res LeaveResult) {
	if !res.Found || s.engine == nil {
		return
	}
	log := s.log.With(slog.String("room_id", roomID))

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CleanupTimeout)
	defer cancel()

	if res.Destroyed {
		if res.Session == "" {
			return
		}
		if err := s.engine.CloseRouter(ctx, res.Session); err != nil {
			log.Warn("failed to close router", sl.Err(err))
		}
		return
	}

	session, _, ok := s.rooms.MediaState(roomID)
	if !ok || session == "" {
		return
	}
	for _, id := range res.Transports {
		if err := s.engine.CloseTransport(ctx, session, id); err != nil {
			log.Warn("failed to close transport", slog.String("transport_id", id), sl.Err(err))
		}
	}
}

// cleanup is the registry removal hook. It runs exactly once per connection.
func (s *Signaling) cleanup(conn *registry.Connection) {
	s.stopJoinTimer(conn.ID)
	prev := conn.SwapState(domain.StateClosed)
	if prev == domain.StateJoined {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CleanupTimeout)
		s.leaveRoom(ctx, conn)
		cancel()
	}
	conn.Out.Close()
	s.metrics.ConnectionClosed()

	s.log.Info("connection closed",
		slog.String("conn_id", conn.ID),
		slog.String("room_id", conn.RoomID),
		slog.String("user_id", conn.UserID),
		slog.String("state", prev.String()),
	)
}

func (s *Signaling) relay(conn *registry.Connection, msg *domain.Message) error {
	if msg.Target == conn.UserID {
		return domain.Errorf(domain.CodeInvalidState, "cannot send %s to yourself", msg.Type)
	}
	target, ok := s.rooms.Target(conn.RoomID, msg.Target)
	if !ok {
		return domain.Errorf(domain.CodeUnknownTarget, "participant %q is not in room %q", msg.Target, conn.RoomID)
	}
	s.deliver(target, transport.Frame{Type: msg.Type, Data: msg.Raw()})
	return nil
}

func (s *Signaling) chat(ctx context.Context, conn *registry.Connection, msg *domain.Message) error {
	var chat *domain.ChatMessage
	stamp, err := s.rooms.Chat(conn.RoomID, conn.UserID, func(st ChatStamp) {
		chat = domain.NewChatMessage(conn.RoomID, st.Sender, msg.Text)
		s.broadcast(st.Targets, domain.Event{
			Type:        domain.TypeChat,
			Room:        conn.RoomID,
			UserID:      chat.UserID,
			DisplayName: chat.DisplayName,
			Seq:         st.Seq,
			ChatID:      chat.ID.String(),
			Text:        chat.Content,
			SentAt:      &chat.CreatedAt,
		})
	})
	if err != nil {
		return err
	}

	ev := domain.NewRoomEvent(conn.RoomID, stamp.Seq, domain.RoomEventChat, conn.UserID)
	ev.Epoch = stamp.Epoch
	ev.Payload = chat.Content
	ev.CreatedAt = chat.CreatedAt
	s.record(ctx, ev)
	return nil
}

func (s *Signaling) armJoinTimer(conn *registry.Connection) {
	if s.cfg.PendingJoinTimeout <= 0 {
		return
	}
	t := time.AfterFunc(s.cfg.PendingJoinTimeout, func() {
		s.expireJoin(conn)
	})
	s.timersMu.Lock()
	s.timers[conn.ID] = t
	s.timersMu.Unlock()
}

func (s *Signaling) stopJoinTimer(connID string) {
	s.timersMu.Lock()
	t, ok := s.timers[connID]
	delete(s.timers, connID)
	s.timersMu.Unlock()
	if ok {
		t.Stop()
	}
}

func (s *Signaling) expireJoin(conn *registry.Connection) {
	if conn.State() != domain.StateConnecting {
		return
	}
	s.log.Info("join timed out",
		slog.String("conn_id", conn.ID),
		slog.String("room_id", conn.RoomID),
		slog.String("user_id", conn.UserID),
	)
	s.replyError(conn, domain.ErrPendingJoinTimeout, domain.TypeJoin)
	conn.Out.Close()
	s.registry.Unregister(conn.ID)
}

func (s *Signaling) record(ctx context.Context, ev *domain.RoomEvent) {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CleanupTimeout)
	defer cancel()
	if err := s.journal.Append(ctx, ev); err != nil {
		s.log.Warn("failed to journal room event",
			slog.String("room_id", ev.RoomID),
			slog.String("kind", string(ev.Kind)),
			sl.Err(err),
		)
	}
}

func (s *Signaling) replyError(conn *registry.Connection, err error, ref domain.MessageType) {
	s.metrics.ErrorSent(domain.CodeOf(err))
	s.sendTo(conn, domain.ErrorEvent(err, ref))
}

func (s *Signaling) sendTo(conn *registry.Connection, ev domain.Event) {
	f, err := transport.NewFrame(ev)
	if err != nil {
		s.log.Error("failed to encode event", slog.String("type", string(ev.Type)), sl.Err(err))
		return
	}
	conn.Out.Send(f)
}

func (s *Signaling) broadcast(connIDs []string, ev domain.Event) {
	if len(connIDs) == 0 {
		return
	}
	f, err := transport.NewFrame(ev)
	if err != nil {
		s.log.Error("failed to encode event", slog.String("type", string(ev.Type)), sl.Err(err))
		return
	}
	for _, id := range connIDs {
		s.deliver(id, f)
	}
}

// deliver hands f to a registered connection. Connections already gone are
// skipped; their own cleanup reports the departure.
func (s *Signaling) deliver(connID string, f transport.Frame) {
	conn := s.registry.Lookup(connID)
	if conn == nil || conn.State() == domain.StateClosed {
		s.log.Debug("dropping frame for closed connection", slog.String("conn_id", connID), slog.String("type", string(f.Type)))
		return
	}
	conn.Out.Send(f)
}
