package presence

import (
	"context"
	"time"

	"uniconnect-chat/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StatusPayload is the data of user-online and user-offline frames.
type StatusPayload struct {
	UserID    uuid.UUID `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker turns presence edges into room broadcasts. Edges are processed one at a time
// in the order the hub produced them.
type Tracker struct {
	rooms   RoomIndex
	out     Broadcaster
	log     *logrus.Logger
	timeout time.Duration
}

func NewTracker(rooms RoomIndex, out Broadcaster, log *logrus.Logger, timeout time.Duration) actor.Actor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Tracker{rooms: rooms, out: out, log: log, timeout: timeout}
}

func (t *Tracker) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		t.log.Info("PresenceTracker started")

	case *websocket.PresenceEvent:
		t.handlePresence(msg)
	}
}

func (t *Tracker) handlePresence(ev *websocket.PresenceEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	entry := t.log.WithFields(logrus.Fields{
		"user_id": ev.UserID,
		"online":  ev.Online,
	})

	roomIDs, err := t.rooms.RoomIDsForUser(ctx, ev.UserID)
	if err != nil {
		entry.WithError(err).Warn("Failed to resolve rooms for presence broadcast")
		return
	}

	event := websocket.EventUserOffline
	if ev.Online {
		event = websocket.EventUserOnline
	}
	payload, err := websocket.EncodeFrame(event, StatusPayload{UserID: ev.UserID, Timestamp: ev.At})
	if err != nil {
		entry.WithError(err).Error("Failed to encode presence frame")
		return
	}

	for _, roomID := range roomIDs {
		t.out.BroadcastRoom(roomID, payload, ev.UserID)
	}
	entry.WithField("rooms", len(roomIDs)).Debug("Presence broadcast")
}

// NewSink returns a hub presence sink that forwards edges to the tracker's mailbox.
// Send does not block, so the sink is safe to call under the hub lock.
func NewSink(root *actor.RootContext, tracker *actor.PID) websocket.PresenceSink {
	return func(ev websocket.PresenceEvent) {
		root.Send(tracker, &ev)
	}
}
