package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"uniconnect-chat/internal/mocks"
	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/utils"
	"uniconnect-chat/internal/websocket"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newNotification(recipient uuid.UUID) Notification {
	roomID := uuid.New()
	return Notification{
		RecipientID: recipient,
		RoomID:      roomID,
		Message: &models.Message{
			ID:        uuid.New(),
			RoomID:    roomID,
			SenderID:  uuid.New(),
			Content:   "hi",
			CreatedAt: time.Now(),
			Status:    models.StatusSent,
		},
		Sender:      SenderSummary{ID: uuid.New(), Name: "alice"},
		UnreadCount: 1,
	}
}

type frame struct {
	Event string  `json:"event"`
	Data  Payload `json:"data"`
}

func TestFanout_DeliversWithTotalUnread(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockUnread := mocks.NewMockUnreadCounter(ctrl)
	mockOut := mocks.NewMockUserSender(ctrl)
	fanout := NewFanout(mockUnread, mockOut, utils.NewDiscardLogger(), 4, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fanout.Run(ctx)

	recipient := uuid.New()
	n := newNotification(recipient)
	received := make(chan frame, 1)

	// Given the recipient has 3 unread messages overall
	mockUnread.EXPECT().TotalUnread(gomock.Any(), recipient).Return(3, nil)
	mockOut.EXPECT().SendToUser(recipient, gomock.Any()).
		DoAndReturn(func(_ uuid.UUID, payload []byte) int {
			var f frame
			req.NoError(json.Unmarshal(payload, &f))
			received <- f
			return 1
		})

	// When a notification is published
	req.True(fanout.Publish(n))

	// Then it reaches the personal channel with the updated totals
	select {
	case f := <-received:
		req.Equal(websocket.EventMessageNotification, f.Event)
		req.Equal(n.RoomID, f.Data.RoomID)
		req.Equal(n.Message.ID, f.Data.Message.ID)
		req.Equal("alice", f.Data.Sender.Name)
		req.Equal(1, f.Data.UnreadCount)
		req.NotNil(f.Data.TotalUnread)
		req.Equal(3, *f.Data.TotalUnread)
	case <-time.After(time.Second):
		req.Fail("notification not delivered in time")
	}
}

func TestFanout_UnreadFailureStillNotifies(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockUnread := mocks.NewMockUnreadCounter(ctrl)
	mockOut := mocks.NewMockUserSender(ctrl)
	fanout := NewFanout(mockUnread, mockOut, utils.NewDiscardLogger(), 4, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fanout.Run(ctx)

	recipient := uuid.New()
	received := make(chan frame, 1)

	mockUnread.EXPECT().TotalUnread(gomock.Any(), recipient).Return(0, errors.New("store down"))
	mockOut.EXPECT().SendToUser(recipient, gomock.Any()).
		DoAndReturn(func(_ uuid.UUID, payload []byte) int {
			var f frame
			req.NoError(json.Unmarshal(payload, &f))
			received <- f
			return 0
		})

	fanout.Publish(newNotification(recipient))

	select {
	case f := <-received:
		req.Nil(f.Data.TotalUnread)
	case <-time.After(time.Second):
		req.Fail("notification not attempted in time")
	}
	req.Eventually(func() bool { return fanout.Missed() == 1 }, time.Second, 5*time.Millisecond)
}

func TestFanout_PublishNeverBlocks(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Not running: nothing drains the queue.
	fanout := NewFanout(mocks.NewMockUnreadCounter(ctrl), mocks.NewMockUserSender(ctrl), utils.NewDiscardLogger(), 2, time.Second)
	recipient := uuid.New()

	req.True(fanout.Publish(newNotification(recipient)))
	req.True(fanout.Publish(newNotification(recipient)))
	req.False(fanout.Publish(newNotification(recipient)))
	req.Equal(int64(1), fanout.Dropped())
}

func TestFanout_StopsOnContextDone(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	fanout := NewFanout(mocks.NewMockUnreadCounter(ctrl), mocks.NewMockUserSender(ctrl), utils.NewDiscardLogger(), 1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- fanout.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
