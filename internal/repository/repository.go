package repository

import (
	"context"
	"errors"

	"github.com/immxrtalbeast/axenix_signal/internal/domain"
)

var ErrNilEvent = errors.New("room event is nil")

// EventJournal is an append-only log of room membership and chat events.
type EventJournal interface {
	Append(ctx context.Context, ev *domain.RoomEvent) error
	// ListByRoom returns the room's events ordered by epoch and seq, then by insertion.
	ListByRoom(ctx context.Context, roomID string) ([]*domain.RoomEvent, error)
}
