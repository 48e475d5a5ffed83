package actors

import (
	"uniconnect-chat/internal/models"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Message types for RoomSupervisor
type (
	GetOrCreateRoomMsg struct {
		UserID  uuid.UUID
		OtherID uuid.UUID
	}

	GetRoomActorMsg struct {
		RoomID uuid.UUID
	}
)

// RoomRef locates the actor owning a room.
type RoomRef struct {
	RoomID  uuid.UUID
	PID     *actor.PID
	Created bool
}

// Message types for RoomActor. Every request carries the acting identity, which must be
// one of the room's participants.
type (
	AppendMessageMsg struct {
		SenderID uuid.UUID
		Content  string
	}

	DeliverPendingMsg struct {
		RecipientID uuid.UUID
	}

	DeliverMessageMsg struct {
		MessageID   uuid.UUID
		RecipientID uuid.UUID
	}

	MarkReadMsg struct {
		ReaderID uuid.UUID
	}

	// JoinRoomMsg runs the delivered batch followed by the read batch for the joining user.
	JoinRoomMsg struct {
		UserID uuid.UUID
	}

	DeleteMessageMsg struct {
		MessageID   uuid.UUID
		RequesterID uuid.UUID
	}

	// GetMessagesMsg returns the log; with MarkRead the requester's read batch runs first.
	GetMessagesMsg struct {
		RequesterID uuid.UUID
		MarkRead    bool
	}

	// GetSnapshotMsg returns a copy of the room; SummaryOnly leaves the log out.
	GetSnapshotMsg struct {
		RequesterID uuid.UUID
		SummaryOnly bool
	}
)

// Responses
type (
	AppendResult struct {
		Message     *models.Message
		RecipientID uuid.UUID
		// RecipientUnread is the recipient's unread count in this room after the append.
		RecipientUnread int
	}

	TransitionResult struct {
		RoomID     uuid.UUID
		UserID     uuid.UUID
		MessageIDs []uuid.UUID
	}

	JoinResult struct {
		Room      *models.Room
		Delivered []uuid.UUID
		Read      []uuid.UUID
	}

	MessagesResult struct {
		Room     *models.Room
		Messages []*models.Message
		Read     []uuid.UUID
	}
)

// Changed reports whether the transition touched any message.
func (r *TransitionResult) Changed() bool {
	return r != nil && len(r.MessageIDs) > 0
}
