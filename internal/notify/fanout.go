package notify

import (
	"context"
	"sync/atomic"
	"time"

	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/websocket"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type SenderSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Notification announces a new message to a recipient who is not viewing the room.
type Notification struct {
	RecipientID uuid.UUID
	RoomID      uuid.UUID
	Message     *models.Message
	Sender      SenderSummary
	// UnreadCount is the recipient's unread count in RoomID after the append.
	UnreadCount int
}

// Payload is the data of a message-notification frame.
type Payload struct {
	RoomID      uuid.UUID       `json:"roomId"`
	Message     *models.Message `json:"message"`
	Sender      SenderSummary   `json:"sender"`
	UnreadCount int             `json:"unreadCount"`
	TotalUnread *int            `json:"totalUnread,omitempty"`
}

// Fanout pushes new-message notifications to the recipient's personal channel.
//
// Delivery is best effort: a full queue drops the notification and an offline recipient
// simply misses it. Clients recover by pulling their unread totals.
type Fanout struct {
	queue   chan Notification
	unread  UnreadCounter
	out     UserSender
	log     *logrus.Logger
	timeout time.Duration

	dropped atomic.Int64
	missed  atomic.Int64
}

func NewFanout(unread UnreadCounter, out UserSender, log *logrus.Logger, bufferSize int, timeout time.Duration) *Fanout {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Fanout{
		queue:   make(chan Notification, bufferSize),
		unread:  unread,
		out:     out,
		log:     log,
		timeout: timeout,
	}
}

// Publish enqueues n without blocking and reports whether it was accepted.
func (f *Fanout) Publish(n Notification) bool {
	select {
	case f.queue <- n:
		return true
	default:
		f.dropped.Add(1)
		f.log.WithFields(logrus.Fields{
			"room_id": n.RoomID,
			"user_id": n.RecipientID,
		}).Warn("Notification queue full, notification dropped")
		return false
	}
}

// Run delivers queued notifications until ctx is done.
func (f *Fanout) Run(ctx context.Context) error {
	f.log.Info("Notification fanout started")
	for {
		select {
		case n := <-f.queue:
			f.deliver(ctx, n)
		case <-ctx.Done():
			f.log.Debug("Context done, stopping notification fanout")
			return nil
		}
	}
}

func (f *Fanout) deliver(ctx context.Context, n Notification) {
	entry := f.log.WithFields(logrus.Fields{
		"room_id":    n.RoomID,
		"user_id":    n.RecipientID,
		"message_id": n.Message.ID,
	})

	payload := Payload{
		RoomID:      n.RoomID,
		Message:     n.Message,
		Sender:      n.Sender,
		UnreadCount: n.UnreadCount,
	}

	countCtx, cancel := context.WithTimeout(ctx, f.timeout)
	total, err := f.unread.TotalUnread(countCtx, n.RecipientID)
	cancel()
	if err != nil {
		entry.WithError(err).Warn("Unread total unavailable, notifying without it")
	} else {
		payload.TotalUnread = &total
	}

	frame, err := websocket.EncodeFrame(websocket.EventMessageNotification, payload)
	if err != nil {
		entry.WithError(err).Error("Failed to encode notification")
		return
	}

	if f.out.SendToUser(n.RecipientID, frame) == 0 {
		f.missed.Add(1)
		entry.Debug("Recipient offline, notification missed")
	}
}

// Dropped counts notifications rejected by a full queue.
func (f *Fanout) Dropped() int64 {
	return f.dropped.Load()
}

// Missed counts notifications that found no connection to deliver to.
func (f *Fanout) Missed() int64 {
	return f.missed.Load()
}
