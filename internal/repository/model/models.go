package model

import "time"

type RoomEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	RoomID    string    `gorm:"size:255;index:idx_room_events_room_seq,priority:1;not null"`
	Epoch     uint64    `gorm:"index:idx_room_events_room_seq,priority:2;not null"`
	Seq       uint64    `gorm:"index:idx_room_events_room_seq,priority:3;not null"`
	Kind      string    `gorm:"size:32;not null"`
	UserID    string    `gorm:"size:255"`
	Payload   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
}
