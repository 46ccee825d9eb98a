package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// Event is an outbound message produced by the server.
type Event struct {
	Type         MessageType       `json:"type"`
	Room         string            `json:"room,omitempty"`
	UserID       string            `json:"userId,omitempty"`
	DisplayName  string            `json:"displayName,omitempty"`
	Seq          uint64            `json:"seq,omitempty"`
	Participants []ParticipantInfo `json:"participants,omitempty"`
	Transport    *TransportParams  `json:"transport,omitempty"`
	TransportID  string            `json:"transportId,omitempty"`
	ProducerID   string            `json:"producerId,omitempty"`
	Kind         MediaKind         `json:"kind,omitempty"`
	Consumer     *ConsumerParams   `json:"consumer,omitempty"`
	ChatID       string            `json:"chatId,omitempty"`
	Text         string            `json:"text,omitempty"`
	SentAt       *time.Time        `json:"sentAt,omitempty"`
	Code         ErrorCode         `json:"code,omitempty"`
	Message      string            `json:"message,omitempty"`
	Ref          MessageType       `json:"ref,omitempty"`
	Dropped      int               `json:"dropped,omitempty"`
}

// ErrorEvent converts err into the Error message sent back to a client.
func ErrorEvent(err error, ref MessageType) Event {
	ev := Event{Type: TypeError, Code: CodeInternal, Message: "internal error", Ref: ref}
	var de *Error
	if errors.As(err, &de) {
		ev.Code = de.Code
		ev.Message = de.Message
	}
	return ev
}

func ResourceExhaustedEvent(dropped int) Event {
	return Event{
		Type:    TypeResourceExhausted,
		Code:    CodeResourceExhausted,
		Message: ErrResourceExhausted.Message,
		Dropped: dropped,
	}
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
