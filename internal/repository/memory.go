package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/immxrtalbeast/axenix_signal/internal/domain"
)

type InMemoryEventJournal struct {
	mu     sync.RWMutex
	events map[string][]*domain.RoomEvent
}

func NewInMemoryEventJournal() *InMemoryEventJournal {
	return &InMemoryEventJournal{
		events: make(map[string][]*domain.RoomEvent),
	}
}

func (j *InMemoryEventJournal) Append(ctx context.Context, ev *domain.RoomEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev == nil {
		return ErrNilEvent
	}

	cp := *ev

	j.mu.Lock()
	defer j.mu.Unlock()

	j.events[ev.RoomID] = append(j.events[ev.RoomID], &cp)
	return nil
}

func (j *InMemoryEventJournal) ListByRoom(ctx context.Context, roomID string) ([]*domain.RoomEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	stored := j.events[roomID]
	out := make([]*domain.RoomEvent, 0, len(stored))
	for _, ev := range stored {
		cp := *ev
		out = append(out, &cp)
	}
	j.mu.RUnlock()

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Epoch != out[b].Epoch {
			return out[a].Epoch < out[b].Epoch
		}
		return out[a].Seq < out[b].Seq
	})
	return out, nil
}
