package repository

import (
	"context"

	"github.com/immxrtalbeast/axenix_signal/internal/domain"
	"github.com/immxrtalbeast/axenix_signal/internal/repository/model"
	"gorm.io/gorm"
)

// GormEventJournal stores the journal through gorm. Production runs it on
// postgres; tests use sqlite.
type GormEventJournal struct {
	db *gorm.DB
}

func NewGormEventJournal(db *gorm.DB) *GormEventJournal {
	return &GormEventJournal{db: db}
}

// Migrate creates or updates the journal table.
func (j *GormEventJournal) Migrate(ctx context.Context) error {
	return j.db.WithContext(ctx).AutoMigrate(&model.RoomEvent{})
}

func (j *GormEventJournal) Append(ctx context.Context, ev *domain.RoomEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev == nil {
		return ErrNilEvent
	}

	return j.db.WithContext(ctx).Create(toModelEvent(ev)).Error
}

func (j *GormEventJournal) ListByRoom(ctx context.Context, roomID string) ([]*domain.RoomEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []model.RoomEvent
	err := j.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("epoch ASC").
		Order("seq ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	events := make([]*domain.RoomEvent, 0, len(rows))
	for i := range rows {
		events = append(events, toDomainEvent(&rows[i]))
	}
	return events, nil
}

func toModelEvent(ev *domain.RoomEvent) *model.RoomEvent {
	return &model.RoomEvent{
		RoomID:    ev.RoomID,
		Epoch:     ev.Epoch,
		Seq:       ev.Seq,
		Kind:      string(ev.Kind),
		UserID:    ev.UserID,
		Payload:   ev.Payload,
		CreatedAt: ev.CreatedAt,
	}
}

func toDomainEvent(m *model.RoomEvent) *domain.RoomEvent {
	return &domain.RoomEvent{
		RoomID:    m.RoomID,
		Epoch:     m.Epoch,
		Seq:       m.Seq,
		Kind:      domain.RoomEventKind(m.Kind),
		UserID:    m.UserID,
		Payload:   m.Payload,
		CreatedAt: m.CreatedAt,
	}
}
