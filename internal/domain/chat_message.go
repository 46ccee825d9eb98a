package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxChatMessageLength = 4000

type ChatMessage struct {
	ID          uuid.UUID
	RoomID      string
	UserID      string
	DisplayName string
	Content     string
	CreatedAt   time.Time
}

func NewChatMessage(roomID string, sender ParticipantInfo, content string) *ChatMessage {
	return &ChatMessage{
		ID:          uuid.New(),
		RoomID:      roomID,
		UserID:      sender.UserID,
		DisplayName: sender.DisplayName,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
	}
}

// ValidateChatText trims text and enforces the length limit.
func ValidateChatText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", Errorf(CodeMalformedMessage, "chat message cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > maxChatMessageLength {
		return "", Errorf(CodeMalformedMessage, "chat message is too long")
	}
	return trimmed, nil
}
