package chat

import (
	"encoding/json"
	"time"

	"uniconnect-chat/internal/engine/actors"
	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/notify"
	"uniconnect-chat/internal/utils"
	"uniconnect-chat/internal/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Rooms is the part of the engine the realtime surface drives.
type Rooms interface {
	Authorize(roomID, userID uuid.UUID) (*models.Room, error)
	JoinRoom(roomID, userID uuid.UUID) (*actors.JoinResult, error)
	SendMessage(roomID, senderID uuid.UUID, content string) (*actors.AppendResult, error)
	DeliverMessage(roomID, messageID, recipientID uuid.UUID) (*actors.TransitionResult, error)
	MarkRead(roomID, readerID uuid.UUID) (*actors.TransitionResult, error)
	DeleteMessage(roomID, messageID, requesterID uuid.UUID) (*models.Message, error)
}

type Notifier interface {
	Publish(n notify.Notification) bool
}

// Service handles inbound websocket frames and broadcasts the resulting events.
type Service struct {
	rooms    Rooms
	hub      *websocket.Hub
	notifier Notifier
	validate *validator.Validate
	metrics  *utils.MetricsCollector
	log      *logrus.Logger
}

var _ websocket.FrameHandler = (*Service)(nil)

func NewService(rooms Rooms, hub *websocket.Hub, notifier Notifier, metrics *utils.MetricsCollector, log *logrus.Logger) *Service {
	return &Service{
		rooms:    rooms,
		hub:      hub,
		notifier: notifier,
		validate: validator.New(),
		metrics:  metrics,
		log:      log,
	}
}

// HandleFrame dispatches one inbound frame. Failures go back to the originating
// connection as an error frame; the connection stays open.
func (s *Service) HandleFrame(c *websocket.Client, frame *websocket.InboundFrame) {
	start := time.Now()
	s.metrics.IncrementRequests()

	var err error
	switch frame.Event {
	case websocket.EventJoinRoom:
		err = s.joinRoom(c, frame)
	case websocket.EventLeaveRoom:
		err = s.leaveRoom(c, frame)
	case websocket.EventSendMessage:
		err = s.sendMessage(c, frame)
	case websocket.EventTyping:
		err = s.relayTyping(c, frame, true)
	case websocket.EventStopTyping:
		err = s.relayTyping(c, frame, false)
	case websocket.EventMarkRead:
		err = s.markRead(c, frame)
	case websocket.EventDeleteMessage:
		err = s.deleteMessage(c, frame)
	default:
		err = utils.NewAppError(utils.ErrInvalidInput, "unknown event "+frame.Event, nil)
	}

	s.metrics.Observe("ws_"+frame.Event, start, err)
	if err != nil {
		entry := s.log.WithFields(logrus.Fields{
			"event":         frame.Event,
			"user_id":       c.UserID,
			"connection_id": c.ID,
		}).WithError(err)
		if utils.IsErrorCode(err, utils.ErrTransientStore) || utils.IsErrorCode(err, utils.ErrActorTimeout) {
			entry.Error("Realtime operation failed")
		} else {
			entry.Debug("Realtime operation rejected")
		}
		c.SendError(frame.Event, frame.RequestID, err)
	}
}

func (s *Service) joinRoom(c *websocket.Client, frame *websocket.InboundFrame) error {
	var req roomRequest
	if err := s.decode(frame, &req); err != nil {
		return err
	}
	roomID := uuid.MustParse(req.RoomID)

	// Outsiders never enter the broadcast set. Members join the hub before the actor runs
	// the join batch, so a message racing this join is delivered straight away.
	if _, err := s.rooms.Authorize(roomID, c.UserID); err != nil {
		return err
	}
	added := s.hub.JoinRoom(c, roomID)
	res, err := s.rooms.JoinRoom(roomID, c.UserID)
	if err != nil {
		if added {
			s.hub.LeaveRoom(c, roomID)
		}
		return err
	}

	c.SendFrame(websocket.EventJoinedRoom, JoinedRoomPayload{
		RoomID:      roomID,
		UnreadCount: res.Room.UnreadFor(c.UserID),
	})
	s.broadcastBatch(websocket.EventMessagesDelivered, roomID, c.UserID, res.Delivered)
	s.broadcastBatch(websocket.EventMessagesRead, roomID, c.UserID, res.Read)
	return nil
}

func (s *Service) leaveRoom(c *websocket.Client, frame *websocket.InboundFrame) error {
	var req roomRequest
	if err := s.decode(frame, &req); err != nil {
		return err
	}
	roomID := uuid.MustParse(req.RoomID)

	s.hub.LeaveRoom(c, roomID)
	c.SendFrame(websocket.EventLeftRoom, LeftRoomPayload{RoomID: roomID})
	return nil
}

func (s *Service) sendMessage(c *websocket.Client, frame *websocket.InboundFrame) error {
	var req sendMessageRequest
	if err := s.decode(frame, &req); err != nil {
		return err
	}
	roomID := uuid.MustParse(req.RoomID)

	res, err := s.rooms.SendMessage(roomID, c.UserID, req.Content)
	if err != nil {
		return err
	}

	s.broadcast(roomID, websocket.EventNewMessage, res.Message, uuid.Nil)
	if !s.hub.IsClientInRoom(c, roomID) {
		c.SendFrame(websocket.EventNewMessage, res.Message)
	}

	if s.hub.IsUserInRoom(res.RecipientID, roomID) {
		s.deliverNow(roomID, res.Message.ID, res.RecipientID)
		return nil
	}

	s.notifier.Publish(notify.Notification{
		RecipientID: res.RecipientID,
		RoomID:      roomID,
		Message:     res.Message,
		Sender:      notify.SenderSummary{ID: c.UserID, Name: c.UserName},
		UnreadCount: res.RecipientUnread,
	})
	return nil
}

// deliverNow marks a fresh message delivered for a recipient who is viewing the room.
// The message is already stored, so a failure here only delays the delivered tick.
func (s *Service) deliverNow(roomID, messageID, recipientID uuid.UUID) {
	res, err := s.rooms.DeliverMessage(roomID, messageID, recipientID)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"room_id":    roomID,
			"message_id": messageID,
		}).Warn("Immediate delivery failed, message stays sent until the next join")
		return
	}
	if !res.Changed() {
		return
	}
	s.broadcast(roomID, websocket.EventMessageStatusUpdated, StatusUpdatedPayload{
		MessageID: messageID,
		RoomID:    roomID,
		Status:    models.StatusDelivered,
		Timestamp: time.Now(),
	}, uuid.Nil)
}

func (s *Service) relayTyping(c *websocket.Client, frame *websocket.InboundFrame, typing bool) error {
	var req roomRequest
	if err := s.decode(frame, &req); err != nil {
		return err
	}
	roomID := uuid.MustParse(req.RoomID)

	// Joining authorized the connection for this room; typing has no other check.
	if !s.hub.IsClientInRoom(c, roomID) {
		return utils.NewForbiddenError("join the room before sending typing updates")
	}
	s.broadcast(roomID, websocket.EventUserTyping, TypingPayload{
		RoomID:   roomID,
		UserID:   c.UserID,
		UserName: c.UserName,
		IsTyping: typing,
	}, c.UserID)
	return nil
}

func (s *Service) markRead(c *websocket.Client, frame *websocket.InboundFrame) error {
	var req roomRequest
	if err := s.decode(frame, &req); err != nil {
		return err
	}
	roomID := uuid.MustParse(req.RoomID)

	res, err := s.rooms.MarkRead(roomID, c.UserID)
	if err != nil {
		return err
	}
	s.broadcastBatch(websocket.EventMessagesRead, roomID, c.UserID, res.MessageIDs)
	return nil
}

func (s *Service) deleteMessage(c *websocket.Client, frame *websocket.InboundFrame) error {
	var req deleteMessageRequest
	if err := s.decode(frame, &req); err != nil {
		return err
	}

	msg, err := s.rooms.DeleteMessage(uuid.MustParse(req.RoomID), uuid.MustParse(req.MessageID), c.UserID)
	if err != nil {
		return err
	}
	s.MessageDeleted(msg)
	return nil
}

// MessagesRead broadcasts a read batch produced outside the websocket surface.
func (s *Service) MessagesRead(roomID, readerID uuid.UUID, messageIDs []uuid.UUID) {
	s.broadcastBatch(websocket.EventMessagesRead, roomID, readerID, messageIDs)
}

// MessageDeleted broadcasts a tombstone to everyone viewing the room.
func (s *Service) MessageDeleted(msg *models.Message) {
	s.broadcast(msg.RoomID, websocket.EventMessageDeleted, MessageDeletedPayload{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
	}, uuid.Nil)
}

func (s *Service) broadcastBatch(event string, roomID, userID uuid.UUID, ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	s.broadcast(roomID, event, BatchPayload{
		RoomID:     roomID,
		UserID:     userID,
		MessageIDs: ids,
		Timestamp:  time.Now(),
	}, uuid.Nil)
}

func (s *Service) broadcast(roomID uuid.UUID, event string, data interface{}, exclude uuid.UUID) {
	payload, err := websocket.EncodeFrame(event, data)
	if err != nil {
		s.log.WithError(err).WithField("event", event).Error("Failed to encode frame")
		return
	}
	s.hub.BroadcastRoom(roomID, payload, exclude)
}

func (s *Service) decode(frame *websocket.InboundFrame, dst interface{}) error {
	if len(frame.Data) == 0 {
		return utils.NewAppError(utils.ErrInvalidInput, "missing data", nil)
	}
	if err := json.Unmarshal(frame.Data, dst); err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "invalid data", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "invalid data", err)
	}
	return nil
}
