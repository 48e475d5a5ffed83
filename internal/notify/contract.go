//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_notify.go -package=mocks
package notify

import (
	"context"

	"github.com/google/uuid"
)

// UnreadCounter reports an identity's aggregate unread total.
type UnreadCounter interface {
	TotalUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// UserSender queues a payload on every connection of an identity.
type UserSender interface {
	SendToUser(userID uuid.UUID, payload []byte) int
}
