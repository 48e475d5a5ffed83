package chat

import (
	"time"

	"uniconnect-chat/internal/models"

	"github.com/google/uuid"
)

// Inbound payloads. Ids arrive as strings and are validated before parsing.
type (
	roomRequest struct {
		RoomID string `json:"roomId" validate:"required,uuid"`
	}

	sendMessageRequest struct {
		RoomID  string `json:"roomId" validate:"required,uuid"`
		Content string `json:"content"`
	}

	deleteMessageRequest struct {
		RoomID    string `json:"roomId" validate:"required,uuid"`
		MessageID string `json:"messageId" validate:"required,uuid"`
	}
)

// Outbound payloads.
type (
	JoinedRoomPayload struct {
		RoomID      uuid.UUID `json:"roomId"`
		UnreadCount int       `json:"unreadCount"`
	}

	LeftRoomPayload struct {
		RoomID uuid.UUID `json:"roomId"`
	}

	// BatchPayload carries messages-delivered and messages-read: every listed message
	// addressed to UserID moved in one transition.
	BatchPayload struct {
		RoomID     uuid.UUID   `json:"roomId"`
		UserID     uuid.UUID   `json:"userId"`
		MessageIDs []uuid.UUID `json:"messageIds"`
		Timestamp  time.Time   `json:"timestamp"`
	}

	StatusUpdatedPayload struct {
		MessageID uuid.UUID            `json:"messageId"`
		RoomID    uuid.UUID            `json:"roomId"`
		Status    models.MessageStatus `json:"status"`
		Timestamp time.Time            `json:"timestamp"`
	}

	MessageDeletedPayload struct {
		MessageID uuid.UUID `json:"messageId"`
		RoomID    uuid.UUID `json:"roomId"`
	}

	TypingPayload struct {
		RoomID   uuid.UUID `json:"roomId"`
		UserID   uuid.UUID `json:"userId"`
		UserName string    `json:"userName,omitempty"`
		IsTyping bool      `json:"isTyping"`
	}
)
