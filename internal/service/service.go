package service

import (
	"context"

	"github.com/immxrtalbeast/axenix_signal/internal/domain"
	"github.com/immxrtalbeast/axenix_signal/internal/registry"
)

// SignalingInteractor is what the websocket endpoint needs from the router.
type SignalingInteractor interface {
	Accept(roomID, userID string, out registry.Outbox) (*registry.Connection, error)
	Handle(ctx context.Context, connID string, raw []byte) error
	Close(connID string)
}

// RoomInteractor is the read side used by the REST endpoints.
type RoomInteractor interface {
	Snapshot(roomID string) (domain.RoomSnapshot, bool)
	List() []domain.RoomSnapshot
	// Pending lists users connected to the room that have not joined yet.
	Pending(roomID string) []string
}

var (
	_ SignalingInteractor = (*Signaling)(nil)
	_ RoomInteractor      = (*Signaling)(nil)
)
