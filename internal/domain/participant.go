package domain

import (
	"time"
)

// Role holds the media capabilities a participant asked for on join.
type Role struct {
	Produce bool `json:"produce"`
	Consume bool `json:"consume"`
}

// DefaultRole is used when a Join carries no role.
var DefaultRole = Role{Produce: true, Consume: true}

type TransportDirection string

const (
	DirectionSend TransportDirection = "send"
	DirectionRecv TransportDirection = "recv"
)

// Participant is a user's joined presence in a room.
type Participant struct {
	UserID      string
	DisplayName string
	ConnID      string
	Role        Role
	JoinedAt    time.Time
	Transports  map[TransportDirection]string
	Producers   map[string]MediaKind
}

func NewParticipant(userID, connID, displayName string, role Role) *Participant {
	return &Participant{
		UserID:      userID,
		DisplayName: displayName,
		ConnID:      connID,
		Role:        role,
		JoinedAt:    time.Now().UTC(),
		Transports:  make(map[TransportDirection]string),
		Producers:   make(map[string]MediaKind),
	}
}

// Info returns a copy safe to hand outside the room lock.
func (p *Participant) Info() ParticipantInfo {
	info := ParticipantInfo{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		JoinedAt:    p.JoinedAt,
	}
	for id, kind := range p.Producers {
		info.Producers = append(info.Producers, ProducerInfo{ID: id, Kind: kind})
	}
	return info
}

// ParticipantInfo is the read-only view sent in rosters and the REST API.
type ParticipantInfo struct {
	UserID      string         `json:"userId"`
	DisplayName string         `json:"displayName,omitempty"`
	Role        Role           `json:"role"`
	JoinedAt    time.Time      `json:"joinedAt"`
	Producers   []ProducerInfo `json:"producers,omitempty"`
}

type ProducerInfo struct {
	ID   string    `json:"id"`
	Kind MediaKind `json:"kind"`
}
