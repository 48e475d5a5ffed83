//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_presence.go -package=mocks
package presence

import (
	"context"

	"github.com/google/uuid"
)

// RoomIndex maps an identity to the rooms it participates in.
type RoomIndex interface {
	RoomIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Broadcaster queues a payload on every connection joined to a room.
type Broadcaster interface {
	BroadcastRoom(roomID uuid.UUID, payload []byte, exclude uuid.UUID) int
}
