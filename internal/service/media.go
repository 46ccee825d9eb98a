package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/immxrtalbeast/axenix_signal/internal/domain"
	"github.com/immxrtalbeast/axenix_signal/internal/registry"
	"github.com/immxrtalbeast/axenix_signal/lib/logger/sl"
)

// Engine results reach the room only after every call of a request has
// succeeded; on failure the resources created so far are released.

func (s *Signaling) produce(ctx context.Context, conn *registry.Connection, msg *domain.Message) error {
	const op = "service.signaling.produce"
	log := s.log.With(slog.String("op", op), slog.String("room_id", conn.RoomID), slog.String("user_id", conn.UserID))

	if err := s.requireRole(conn, func(r domain.Role) bool { return r.Produce }, "produce"); err != nil {
		return err
	}
	session, err := s.ensureSession(ctx, conn.RoomID)
	if err != nil {
		return err
	}
	transportID, params, created, err := s.ensureTransport(ctx, conn, session, domain.DirectionSend)
	if err != nil {
		return err
	}

	producerID, err := retryOnce(s, conn.RoomID, "produce", func() (string, error) {
		return s.engine.Produce(ctx, session, transportID, msg.Kind)
	})
	if err != nil {
		if created {
			s.closeTransport(session, transportID)
		}
		return err
	}

	commit := MediaCommit{
		Direction:    domain.DirectionSend,
		TransportID:  transportID,
		NewTransport: created,
		ProducerID:   producerID,
		Kind:         msg.Kind,
	}
	if err := s.rooms.CommitMedia(conn.RoomID, conn.UserID, conn.ID, commit); err != nil {
		if created {
			s.closeTransport(session, transportID)
		}
		return err
	}
	log.Info("producer created", slog.String("producer_id", producerID), slog.String("kind", string(msg.Kind)))

	s.sendTo(conn, domain.Event{
		Type:        domain.TypeProduceResponse,
		Room:        conn.RoomID,
		Transport:   params,
		TransportID: transportID,
		ProducerID:  producerID,
		Kind:        msg.Kind,
	})
	s.broadcast(s.rooms.BroadcastTargets(conn.RoomID, conn.UserID), domain.Event{
		Type:       domain.TypeNewProducer,
		Room:       conn.RoomID,
		UserID:     conn.UserID,
		ProducerID: producerID,
		Kind:       msg.Kind,
	})
	return nil
}

func (s *Signaling) consume(ctx context.Context, conn *registry.Connection, msg *domain.Message) error {
	if err := s.requireRole(conn, func(r domain.Role) bool { return r.Consume }, "consume"); err != nil {
		return err
	}
	owner, _, ok := s.rooms.Producer(conn.RoomID, msg.ProducerID)
	if !ok {
		return domain.Errorf(domain.CodeUnknownTarget, "producer %q is not in room %q", msg.ProducerID, conn.RoomID)
	}
	if owner == conn.UserID {
		return domain.Errorf(domain.CodeInvalidState, "cannot consume own producer")
	}

	session, err := s.ensureSession(ctx, conn.RoomID)
	if err != nil {
		return err
	}
	transportID, params, created, err := s.ensureTransport(ctx, conn, session, domain.DirectionRecv)
	if err != nil {
		return err
	}

	consumer, err := retryOnce(s, conn.RoomID, "consume", func() (domain.ConsumerParams, error) {
		return s.engine.Consume(ctx, session, transportID, msg.ProducerID)
	})
	if err != nil {
		if created {
			s.closeTransport(session, transportID)
		}
		return err
	}

	if created {
		commit := MediaCommit{Direction: domain.DirectionRecv, TransportID: transportID, NewTransport: true}
		if err := s.rooms.CommitMedia(conn.RoomID, conn.UserID, conn.ID, commit); err != nil {
			s.closeTransport(session, transportID)
			return err
		}
	}

	s.sendTo(conn, domain.Event{
		Type:        domain.TypeConsumeResponse,
		Room:        conn.RoomID,
		Transport:   params,
		TransportID: transportID,
		ProducerID:  msg.ProducerID,
		Consumer:    &consumer,
	})
	return nil
}

func (s *Signaling) connectTransport(ctx context.Context, conn *registry.Connection, msg *domain.Message) error {
	if !s.rooms.OwnsTransport(conn.RoomID, conn.UserID, msg.TransportID) {
		return domain.Errorf(domain.CodeUnknownTarget, "transport %q is not yours", msg.TransportID)
	}
	session, err := s.ensureSession(ctx, conn.RoomID)
	if err != nil {
		return err
	}

	_, err = retryOnce(s, conn.RoomID, "connect transport", func() (struct{}, error) {
		return struct{}{}, s.engine.ConnectTransport(ctx, session, msg.TransportID, *msg.Remote)
	})
	if err != nil {
		return err
	}

	s.sendTo(conn, domain.Event{
		Type:        domain.TypeTransportConnected,
		Room:        conn.RoomID,
		TransportID: msg.TransportID,
	})
	return nil
}

func (s *Signaling) requireRole(conn *registry.Connection, allowed func(domain.Role) bool, action string) error {
	p, ok := s.rooms.Participant(conn.RoomID, conn.UserID)
	if !ok {
		return domain.Errorf(domain.CodeInvalidState, "not in room %q", conn.RoomID)
	}
	if !allowed(p.Role) {
		return domain.Errorf(domain.CodeInvalidState, "role does not allow to %s", action)
	}
	return nil
}

// ensureSession returns the room's media router, creating it on first use.
func (s *Signaling) ensureSession(ctx context.Context, roomID string) (domain.RouterHandle, error) {
	if s.engine == nil {
		return "", domain.Errorf(domain.CodeEngineUnavailable, "media is disabled")
	}
	session, degraded, ok := s.rooms.MediaState(roomID)
	if !ok {
		return "", domain.Errorf(domain.CodeInvalidState, "room %q no longer exists", roomID)
	}
	if degraded {
		return "", domain.Errorf(domain.CodeEngineUnavailable, "media is unavailable in room %q", roomID)
	}
	if session != "" {
		return session, nil
	}

	created, err := retryOnce(s, roomID, "create router", func() (domain.RouterHandle, error) {
		return s.engine.CreateRouterForRoom(ctx, roomID)
	})
	if err != nil {
		return "", err
	}

	current, attached, err := s.rooms.AttachSession(roomID, created)
	if err != nil || !attached {
		s.closeRouter(created)
	}
	if err != nil {
		return "", err
	}
	return current, nil
}

func (s *Signaling) ensureTransport(ctx context.Context, conn *registry.Connection, session domain.RouterHandle, dir domain.TransportDirection) (string, *domain.TransportParams, bool, error) {
	if id, ok := s.rooms.Transport(conn.RoomID, conn.UserID, dir); ok {
		return id, nil, false, nil
	}
	params, err := retryOnce(s, conn.RoomID, "create transport", func() (domain.TransportParams, error) {
		return s.engine.CreateTransport(ctx, session, conn.UserID, dir)
	})
	if err != nil {
		return "", nil, false, err
	}
	return params.ID, &params, true, nil
}

// retryOnce repeats fn once when the engine reports itself unavailable. A
// second failure marks the room's media degraded; members stay connected.
func retryOnce[T any](s *Signaling, roomID, action string, fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil || !errors.Is(err, domain.ErrEngineUnavailable) {
		return v, err
	}
	log := s.log.With(slog.String("room_id", roomID), slog.String("action", action))
	log.Warn("media engine unavailable, retrying", sl.Err(err))

	v, err = fn()
	if err == nil || !errors.Is(err, domain.ErrEngineUnavailable) {
		return v, err
	}
	if epoch, seq, changed := s.rooms.MarkDegraded(roomID); changed {
		log.Error("room media degraded", sl.Err(err))
		ev := domain.NewRoomEvent(roomID, seq, domain.RoomEventDegraded, "")
		ev.Epoch = epoch
		s.record(context.Background(), ev)
	}
	return v, err
}

func (s *Signaling) closeTransport(session domain.RouterHandle, transportID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CleanupTimeout)
	defer cancel()
	if err := s.engine.CloseTransport(ctx, session, transportID); err != nil {
		s.log.Warn("failed to close transport", slog.String("transport_id", transportID), sl.Err(err))
	}
}

func (s *Signaling) closeRouter(session domain.RouterHandle) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CleanupTimeout)
	defer cancel()
	if err := s.engine.CloseRouter(ctx, session); err != nil {
		s.log.Warn("failed to close router", slog.String("router_id", string(session)), sl.Err(err))
	}
}
