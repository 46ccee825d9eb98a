package domain

import "time"

type RoomEventKind string

const (
	RoomEventJoined   RoomEventKind = "joined"
	RoomEventLeft     RoomEventKind = "left"
	RoomEventChat     RoomEventKind = "chat"
	RoomEventDegraded RoomEventKind = "degraded"
)

// RoomEvent is one entry of a room's journal. Epoch identifies the room
// incarnation (a room id is reused once the room empties) and Seq orders
// every entry within it. Seqs are unique per epoch.
type RoomEvent struct {
	RoomID    string        `json:"roomId"`
	Epoch     uint64        `json:"epoch"`
	Seq       uint64        `json:"seq"`
	Kind      RoomEventKind `json:"kind"`
	UserID    string        `json:"userId,omitempty"`
	Payload   string        `json:"payload,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

func NewRoomEvent(roomID string, seq uint64, kind RoomEventKind, userID string) *RoomEvent {
	return &RoomEvent{
		RoomID:    roomID,
		Seq:       seq,
		Kind:      kind,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
}

// ReplayMembers folds a journal into the set of users currently joined,
// in join order.
func ReplayMembers(events []*RoomEvent) []string {
	var members []string
	for _, ev := range events {
		switch ev.Kind {
		case RoomEventJoined:
			members = append(members, ev.UserID)
		case RoomEventLeft:
			for i, id := range members {
				if id == ev.UserID {
					members = append(members[:i], members[i+1:]...)
					break
				}
			}
		}
	}
	return members
}
