package domain

import (
	"bytes"
	"encoding/json"
)

type MessageType string

// Inbound message types.
const (
	TypeJoin             MessageType = "Join"
	TypeLeave            MessageType = "Leave"
	TypeOffer            MessageType = "Offer"
	TypeAnswer           MessageType = "Answer"
	TypeIceCandidate     MessageType = "IceCandidate"
	TypeProduceRequest   MessageType = "ProduceRequest"
	TypeConsumeRequest   MessageType = "ConsumeRequest"
	TypeConnectTransport MessageType = "ConnectTransport"
	TypeChat             MessageType = "Chat"
	TypeError            MessageType = "Error"
)

// Outbound-only message types.
const (
	TypeRoster             MessageType = "Roster"
	TypeParticipantJoined  MessageType = "ParticipantJoined"
	TypeParticipantLeft    MessageType = "ParticipantLeft"
	TypeProduceResponse    MessageType = "ProduceResponse"
	TypeNewProducer        MessageType = "NewProducer"
	TypeConsumeResponse    MessageType = "ConsumeResponse"
	TypeTransportConnected MessageType = "TransportConnected"
	TypeResourceExhausted  MessageType = "ResourceExhausted"
)

// Critical reports whether a frame of this type must survive queue overflow.
// Relayed negotiation messages and chat can be re-sent by clients.
func (t MessageType) Critical() bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeIceCandidate, TypeChat:
		return false
	default:
		return true
	}
}

// Message is a parsed inbound signaling message. It keeps the exact bytes it
// was decoded from so relayed messages reach their target unmodified.
type Message struct {
	Type        MessageType            `json:"type"`
	Target      string                 `json:"target,omitempty"`
	SDP         json.RawMessage        `json:"sdp,omitempty"`
	Candidate   json.RawMessage        `json:"candidate,omitempty"`
	Role        *Role                  `json:"role,omitempty"`
	DisplayName string                 `json:"displayName,omitempty"`
	Kind        MediaKind              `json:"kind,omitempty"`
	ProducerID  string                 `json:"producerId,omitempty"`
	TransportID string                 `json:"transportId,omitempty"`
	Remote      *RemoteTransportParams `json:"remote,omitempty"`
	Text        string                 `json:"text,omitempty"`
	Code        ErrorCode              `json:"code,omitempty"`
	Reason      string                 `json:"message,omitempty"`

	raw []byte
}

// Raw returns the bytes the message was decoded from. Callers must not modify them.
func (m *Message) Raw() []byte {
	return m.raw
}

// DecodeMessage parses and validates a raw frame.
func DecodeMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, Wrap(CodeMalformedMessage, "invalid json", err)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	msg.raw = append([]byte(nil), raw...)
	return &msg, nil
}

func (m *Message) validate() error {
	switch m.Type {
	case TypeJoin, TypeLeave, TypeError:
		return nil
	case TypeOffer, TypeAnswer:
		if m.Target == "" {
			return Errorf(CodeMalformedMessage, "%s requires target", m.Type)
		}
		if isEmptyJSON(m.SDP) {
			return Errorf(CodeMalformedMessage, "%s requires sdp", m.Type)
		}
	case TypeIceCandidate:
		if m.Target == "" {
			return Errorf(CodeMalformedMessage, "%s requires target", m.Type)
		}
		if isEmptyJSON(m.Candidate) {
			return Errorf(CodeMalformedMessage, "%s requires candidate", m.Type)
		}
	case TypeProduceRequest:
		if !m.Kind.Valid() {
			return Errorf(CodeMalformedMessage, "unsupported media kind %q", m.Kind)
		}
	case TypeConsumeRequest:
		if m.ProducerID == "" {
			return Errorf(CodeMalformedMessage, "%s requires producerId", m.Type)
		}
	case TypeConnectTransport:
		if m.TransportID == "" || m.Remote == nil {
			return Errorf(CodeMalformedMessage, "%s requires transportId and remote", m.Type)
		}
	case TypeChat:
		text, err := ValidateChatText(m.Text)
		if err != nil {
			return err
		}
		m.Text = text
	case "":
		return Errorf(CodeMalformedMessage, "missing type")
	default:
		return Errorf(CodeMalformedMessage, "unknown type %q", m.Type)
	}
	return nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}
