package converter

import (
	"time"

	"github.com/immxrtalbeast/axenix_signal/internal/domain"
)

type RoomResponse struct {
	ID           string                `json:"id"`
	Epoch        uint64                `json:"epoch"`
	Seq          uint64                `json:"seq"`
	Participants []ParticipantResponse `json:"participants"`
	Pending      []string              `json:"pending,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	Degraded     bool                  `json:"degraded"`
	HasMedia     bool                  `json:"has_media"`
}

type ParticipantResponse struct {
	UserID      string             `json:"user_id"`
	DisplayName string             `json:"display_name"`
	Role        domain.Role        `json:"role"`
	JoinedAt    time.Time          `json:"joined_at"`
	Producers   []ProducerResponse `json:"producers"`
}

type ProducerResponse struct {
	ID   string           `json:"id"`
	Kind domain.MediaKind `json:"kind"`
}

type EventResponse struct {
	Epoch     uint64    `json:"epoch"`
	Seq       uint64    `json:"seq"`
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func RoomToApi(r domain.RoomSnapshot) *RoomResponse {
	participants := make([]ParticipantResponse, 0, len(r.Participants))
	for _, p := range r.Participants {
		producers := make([]ProducerResponse, 0, len(p.Producers))
		for _, pr := range p.Producers {
			producers = append(producers, ProducerResponse{ID: pr.ID, Kind: pr.Kind})
		}
		participants = append(participants, ParticipantResponse{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Role:        p.Role,
			JoinedAt:    p.JoinedAt,
			Producers:   producers,
		})
	}

	return &RoomResponse{
		ID:           r.ID,
		Epoch:        r.Epoch,
		Seq:          r.Seq,
		Participants: participants,
		CreatedAt:    r.CreatedAt,
		Degraded:     r.Degraded,
		HasMedia:     r.HasMedia,
	}
}

func RoomsToApi(rooms []domain.RoomSnapshot) []*RoomResponse {
	out := make([]*RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomToApi(r))
	}
	return out
}

func EventsToApi(events []*domain.RoomEvent) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, EventResponse{
			Epoch:     ev.Epoch,
			Seq:       ev.Seq,
			Kind:      string(ev.Kind),
			UserID:    ev.UserID,
			Payload:   ev.Payload,
			CreatedAt: ev.CreatedAt,
		})
	}
	return out
}
