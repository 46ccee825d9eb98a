package domain

import "time"

// RoomSnapshot is a point-in-time copy of a room's state.
type RoomSnapshot struct {
	ID           string
	Epoch        uint64
	Participants []ParticipantInfo
	Seq          uint64
	CreatedAt    time.Time
	Degraded     bool
	HasMedia     bool
}
