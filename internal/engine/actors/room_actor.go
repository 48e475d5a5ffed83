package actors

import (
	"context"
	"time"

	"uniconnect-chat/internal/database"
	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// RoomConfig holds the limits shared by every room actor.
type RoomConfig struct {
	MaxContentLength int
	StoreTimeout     time.Duration
}

func (c RoomConfig) withDefaults() RoomConfig {
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = models.DefaultMaxContentLength
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	return c
}

// RoomActor is the single writer for one room. It keeps the room in memory and writes it
// back to the store after every change; all mutations of a room go through its mailbox.
type RoomActor struct {
	roomID  uuid.UUID
	room    *models.Room
	store   database.RoomStore
	metrics *utils.MetricsCollector
	log     *logrus.Entry
	cfg     RoomConfig
	now     func() time.Time
}

func NewRoomActor(roomID uuid.UUID, store database.RoomStore, metrics *utils.MetricsCollector, log *logrus.Logger, cfg RoomConfig) actor.Actor {
	return &RoomActor{
		roomID:  roomID,
		store:   store,
		metrics: metrics,
		log:     log.WithField("room_id", roomID),
		cfg:     cfg.withDefaults(),
		now:     time.Now,
	}
}

func (a *RoomActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		if err := a.ensureLoaded(); err != nil {
			a.log.WithError(err).Warn("RoomActor started without state, will retry on first request")
		} else {
			a.log.Debug("RoomActor started")
		}

	case *actor.Stopping:
		a.log.Debug("RoomActor stopping")

	case *actor.Restarting:
		a.log.Warn("RoomActor restarting")

	case *AppendMessageMsg:
		a.handleAppendMessage(context, msg)

	case *DeliverPendingMsg:
		a.handleDeliverPending(context, msg)

	case *DeliverMessageMsg:
		a.handleDeliverMessage(context, msg)

	case *MarkReadMsg:
		a.handleMarkRead(context, msg)

	case *JoinRoomMsg:
		a.handleJoinRoom(context, msg)

	case *DeleteMessageMsg:
		a.handleDeleteMessage(context, msg)

	case *GetMessagesMsg:
		a.handleGetMessages(context, msg)

	case *GetSnapshotMsg:
		a.handleGetSnapshot(context, msg)
	}
}

func (a *RoomActor) handleAppendMessage(context actor.Context, msg *AppendMessageMsg) {
	start := time.Now()
	if err := a.authorize(msg.SenderID); err != nil {
		a.fail(context, "append_message", start, err)
		return
	}

	var appended *models.Message
	err := a.mutate(func(room *models.Room) (bool, error) {
		m, err := room.AppendMessage(msg.SenderID, msg.Content, a.cfg.MaxContentLength, a.now())
		appended = m
		return err == nil, err
	})
	if err != nil {
		a.fail(context, "append_message", start, err)
		return
	}

	recipient, _ := a.room.OtherParticipant(msg.SenderID)
	a.log.WithFields(logrus.Fields{
		"message_id": appended.ID,
		"user_id":    msg.SenderID,
	}).Debug("Message appended")

	a.metrics.Observe("append_message", start, nil)
	context.Respond(&AppendResult{
		Message:         appended.Clone(),
		RecipientID:     recipient,
		RecipientUnread: a.room.UnreadFor(recipient),
	})
}

func (a *RoomActor) handleDeliverPending(context actor.Context, msg *DeliverPendingMsg) {
	start := time.Now()
	if err := a.authorize(msg.RecipientID); err != nil {
		a.fail(context, "deliver_pending", start, err)
		return
	}

	var delivered []uuid.UUID
	err := a.mutate(func(room *models.Room) (bool, error) {
		delivered = room.DeliverPending(msg.RecipientID, a.now())
		return len(delivered) > 0, nil
	})
	if err != nil {
		a.fail(context, "deliver_pending", start, err)
		return
	}

	a.metrics.Observe("deliver_pending", start, nil)
	context.Respond(&TransitionResult{RoomID: a.roomID, UserID: msg.RecipientID, MessageIDs: delivered})
}

func (a *RoomActor) handleDeliverMessage(context actor.Context, msg *DeliverMessageMsg) {
	start := time.Now()
	if err := a.authorize(msg.RecipientID); err != nil {
		a.fail(context, "deliver_message", start, err)
		return
	}

	var delivered []uuid.UUID
	err := a.mutate(func(room *models.Room) (bool, error) {
		delivered = nil
		if room.DeliverMessage(msg.MessageID, msg.RecipientID, a.now()) {
			delivered = []uuid.UUID{msg.MessageID}
		}
		return len(delivered) > 0, nil
	})
	if err != nil {
		a.fail(context, "deliver_message", start, err)
		return
	}

	a.metrics.Observe("deliver_message", start, nil)
	context.Respond(&TransitionResult{RoomID: a.roomID, UserID: msg.RecipientID, MessageIDs: delivered})
}

func (a *RoomActor) handleMarkRead(context actor.Context, msg *MarkReadMsg) {
	start := time.Now()
	if err := a.authorize(msg.ReaderID); err != nil {
		a.fail(context, "mark_read", start, err)
		return
	}

	read, err := a.markRead(msg.ReaderID)
	if err != nil {
		a.fail(context, "mark_read", start, err)
		return
	}

	a.metrics.Observe("mark_read", start, nil)
	context.Respond(&TransitionResult{RoomID: a.roomID, UserID: msg.ReaderID, MessageIDs: read})
}

func (a *RoomActor) handleJoinRoom(context actor.Context, msg *JoinRoomMsg) {
	start := time.Now()
	if err := a.authorize(msg.UserID); err != nil {
		a.fail(context, "join_room", start, err)
		return
	}

	var delivered, read []uuid.UUID
	err := a.mutate(func(room *models.Room) (bool, error) {
		now := a.now()
		delivered = room.DeliverPending(msg.UserID, now)
		read = room.MarkRead(msg.UserID, now)
		return true, nil
	})
	if err != nil {
		a.fail(context, "join_room", start, err)
		return
	}

	a.log.WithFields(logrus.Fields{
		"user_id":   msg.UserID,
		"delivered": len(delivered),
		"read":      len(read),
	}).Debug("User joined room")

	a.metrics.Observe("join_room", start, nil)
	context.Respond(&JoinResult{Room: a.room.Summary(), Delivered: delivered, Read: read})
}

func (a *RoomActor) handleDeleteMessage(context actor.Context, msg *DeleteMessageMsg) {
	start := time.Now()
	if err := a.authorize(msg.RequesterID); err != nil {
		a.fail(context, "delete_message", start, err)
		return
	}

	var deleted *models.Message
	err := a.mutate(func(room *models.Room) (bool, error) {
		wasDeleted := false
		if existing := room.FindMessage(msg.MessageID); existing != nil {
			wasDeleted = existing.IsDeleted
		}
		m, err := room.DeleteMessage(msg.MessageID, msg.RequesterID, a.now())
		deleted = m
		return err == nil && !wasDeleted, err
	})
	if err != nil {
		a.fail(context, "delete_message", start, err)
		return
	}

	a.metrics.Observe("delete_message", start, nil)
	context.Respond(deleted.Clone())
}

func (a *RoomActor) handleGetMessages(context actor.Context, msg *GetMessagesMsg) {
	start := time.Now()
	if err := a.authorize(msg.RequesterID); err != nil {
		a.fail(context, "get_messages", start, err)
		return
	}

	var read []uuid.UUID
	if msg.MarkRead {
		var err error
		if read, err = a.markRead(msg.RequesterID); err != nil {
			a.fail(context, "get_messages", start, err)
			return
		}
	}

	a.metrics.Observe("get_messages", start, nil)
	context.Respond(&MessagesResult{
		Room:     a.room.Summary(),
		Messages: lo.Map(a.room.Messages, func(m *models.Message, _ int) *models.Message { return m.Clone() }),
		Read:     read,
	})
}

func (a *RoomActor) handleGetSnapshot(context actor.Context, msg *GetSnapshotMsg) {
	start := time.Now()
	if err := a.authorize(msg.RequesterID); err != nil {
		a.fail(context, "get_snapshot", start, err)
		return
	}
	if msg.SummaryOnly {
		context.Respond(a.room.Summary())
		return
	}
	context.Respond(a.room.Clone())
}

func (a *RoomActor) markRead(reader uuid.UUID) ([]uuid.UUID, error) {
	var read []uuid.UUID
	err := a.mutate(func(room *models.Room) (bool, error) {
		read = room.MarkRead(reader, a.now())
		// lastReadAt moves even when no message changed.
		return true, nil
	})
	return read, err
}

// authorize loads the room if needed and checks that userID participates in it.
func (a *RoomActor) authorize(userID uuid.UUID) error {
	if err := a.ensureLoaded(); err != nil {
		return err
	}
	if !a.room.HasParticipant(userID) {
		return utils.NewNotParticipantError()
	}
	return nil
}

func (a *RoomActor) ensureLoaded() error {
	if a.room != nil {
		return nil
	}
	return a.reload()
}

func (a *RoomActor) reload() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.StoreTimeout)
	defer cancel()

	room, err := a.store.GetRoom(ctx, a.roomID)
	if err != nil {
		return err
	}
	if room.ReconcileUnread() {
		a.log.WithField("unread", room.UnreadCount).Warn("Stored unread counters drifted from the log, recomputed")
	}
	a.room = room
	return nil
}

// mutate applies fn to the room and persists the result when fn reports a change.
// A failed save restores the previous state. On a version conflict the room is reloaded
// and fn applied once more.
func (a *RoomActor) mutate(fn func(room *models.Room) (bool, error)) error {
	for attempt := 0; ; attempt++ {
		before := a.room.Clone()
		changed, err := fn(a.room)
		if err != nil {
			a.room = before
			return err
		}
		if !changed {
			return nil
		}

		err = a.save()
		if err == nil {
			return nil
		}
		a.room = before
		if !utils.IsErrorCode(err, utils.ErrVersionConflict) || attempt > 0 {
			return err
		}

		a.log.Warn("Version conflict saving room, reloading")
		if err := a.reload(); err != nil {
			return err
		}
	}
}

func (a *RoomActor) save() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.StoreTimeout)
	defer cancel()
	return a.store.SaveRoom(ctx, a.room)
}

func (a *RoomActor) fail(context actor.Context, op string, start time.Time, err error) {
	appErr := utils.AsAppError(err)
	if appErr.Code == utils.ErrTransientStore || appErr.Code == utils.ErrVersionConflict {
		a.log.WithError(err).WithField("operation", op).Error("Room operation failed")
	}
	a.metrics.Observe(op, start, appErr)
	context.Respond(appErr)
}
