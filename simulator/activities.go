package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// connect opens a session for user and joins one of their rooms, the way a client
// lands on its most recent conversation.
func (s *Simulator) connect(ctx context.Context, user *SimulatedUser) error {
	conn, err := dial(ctx, s.wsURL(user))
	if err != nil {
		return err
	}

	rooms := user.Rooms()
	openRoom := uuid.Nil
	if len(rooms) > 0 {
		openRoom = rooms[s.intn(len(rooms))]
	}
	user.attach(conn, openRoom)
	go s.readLoop(user, conn)

	if openRoom != uuid.Nil {
		if err := user.send(websocket.EventJoinRoom, map[string]string{"roomId": openRoom.String()}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) readLoop(user *SimulatedUser, conn *ws.Conn) {
	defer func() {
		conn.Close()
		user.detach(conn)
	}()
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		s.handleFrame(user, frame)
	}
}

func (s *Simulator) handleFrame(user *SimulatedUser, frame inboundFrame) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	switch frame.Event {
	case websocket.EventNewMessage:
		var msg models.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil || msg.SenderID != user.ID {
			return
		}
		if sent, ok := user.takePending(msg.Content); ok {
			s.stats.MessagesEchoed++
			s.stats.EchoLatencies = append(s.stats.EchoLatencies, time.Since(sent))
		}
	case websocket.EventMessageNotification:
		s.stats.Notifications++
	case websocket.EventMessageStatusUpdated, websocket.EventMessagesDelivered:
		s.stats.StatusUpdates++
	case websocket.EventMessagesRead:
		s.stats.ReadReceipts++
	case websocket.EventUserTyping:
		s.stats.TypingEvents++
	case websocket.EventUserOnline, websocket.EventUserOffline:
		s.stats.PresenceEvents++
	case websocket.EventError:
		s.stats.ErrorFrames++
		s.log.WithFields(logrus.Fields{
			"user":  user.Name,
			"error": string(frame.Data),
		}).Debug("Server reported an error")
	}
}

// SimulateActivities sends messages at the configured aggregate rate until ctx is done.
func (s *Simulator) SimulateActivities(ctx context.Context) {
	rate := float64(s.config.NumUsers) * s.config.MessageFrequency // per minute
	if rate <= 0 {
		s.log.Warn("Message frequency is zero, no activity simulated")
		return
	}
	interval := time.Duration(float64(time.Minute) / rate)
	if interval < time.Millisecond {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.simulateMessage()
			if s.chance(s.config.ReadProbability) {
				s.simulateRead()
			}
		}
	}
}

func (s *Simulator) simulateMessage() {
	user := s.users[s.intn(len(s.users))]
	rooms := user.Rooms()
	if len(rooms) == 0 || !user.Connected() {
		return
	}
	roomID := rooms[s.intn(len(rooms))]
	room := map[string]string{"roomId": roomID.String()}

	// Typing only makes sense in the room the user has open.
	if roomID == user.OpenRoom() && s.chance(s.config.TypingProbability) {
		user.send(websocket.EventTyping, room)
		user.send(websocket.EventStopTyping, room)
	}

	content := fmt.Sprintf("hello from %s #%s", user.Name, uuid.NewString()[:8])
	user.expect(content)
	if err := user.send(websocket.EventSendMessage, map[string]string{
		"roomId":  roomID.String(),
		"content": content,
	}); err != nil {
		user.takePending(content)
		return
	}

	s.stats.mu.Lock()
	s.stats.MessagesSent++
	s.stats.mu.Unlock()
}

func (s *Simulator) simulateRead() {
	user := s.users[s.intn(len(s.users))]
	rooms := user.Rooms()
	if len(rooms) == 0 || !user.Connected() {
		return
	}
	roomID := rooms[s.intn(len(rooms))]
	user.send(websocket.EventMarkRead, map[string]string{"roomId": roomID.String()})
}
