package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"uniconnect-chat/internal/middleware"
	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/utils"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// CreateRoomRequest opens (or finds) the conversation with another identity
type CreateRoomRequest struct {
	OtherUserID string `json:"otherUserId" validate:"required,uuid"`
}

type roomQuery struct {
	RoomID string `validate:"required,uuid"`
}

type messageQuery struct {
	RoomID    string `validate:"required,uuid"`
	MessageID string `validate:"required,uuid"`
}

// RoomView is a room as seen by one of its participants.
type RoomView struct {
	ID              uuid.UUID    `json:"id"`
	Participants    [2]uuid.UUID `json:"participants"`
	OtherUserID     uuid.UUID    `json:"otherUserId"`
	OtherUserOnline bool         `json:"otherUserOnline"`
	CreatedAt       time.Time    `json:"createdAt"`
	LastMessageAt   time.Time    `json:"lastMessageAt"`
	UnreadCount     int          `json:"unreadCount"`
}

func (s *Server) newRoomView(room *models.Room, viewer uuid.UUID) RoomView {
	other, _ := room.OtherParticipant(viewer)
	return RoomView{
		ID:              room.ID,
		Participants:    room.Participants,
		OtherUserID:     other,
		OtherUserOnline: s.Hub.IsOnline(other),
		CreatedAt:       room.CreatedAt,
		LastMessageAt:   room.LastMessageAt,
		UnreadCount:     room.UnreadFor(viewer),
	}
}

// MessagesResponse is the room log returned by the pull surface.
type MessagesResponse struct {
	RoomID   uuid.UUID         `json:"roomId"`
	Messages []*models.Message `json:"messages"`
}

// HandleRoom handles POST /chat/room: get-or-create the conversation with otherUserId
func (s *Server) HandleRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		identity, _ := middleware.GetIdentityFromContext(r.Context())

		var req CreateRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, utils.NewAppError(utils.ErrInvalidInput, "invalid request body", err))
			return
		}
		if err := s.validate.Struct(req); err != nil {
			s.writeError(w, r, utils.NewAppError(utils.ErrInvalidInput, "otherUserId must be a valid id", err))
			return
		}

		room, created, err := s.Engine.GetOrCreateRoom(identity.UserID, uuid.MustParse(req.OtherUserID))
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, s.newRoomView(room, identity.UserID))
	}
}

// HandleListRooms handles GET /chat/rooms
func (s *Server) HandleListRooms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		identity, _ := middleware.GetIdentityFromContext(r.Context())

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		rooms, err := s.Engine.ListRooms(ctx, identity.UserID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, lo.Map(rooms, func(room *models.Room, _ int) RoomView {
			return s.newRoomView(room, identity.UserID)
		}))
	}
}

// HandleRoomMessages handles GET /chat/room/messages?roomId=. Reading the log marks it read
// for the caller; the peer sees the read receipts if anything changed.
func (s *Server) HandleRoomMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		identity, _ := middleware.GetIdentityFromContext(r.Context())

		q := roomQuery{RoomID: r.URL.Query().Get("roomId")}
		if err := s.validate.Struct(q); err != nil {
			s.writeError(w, r, utils.NewAppError(utils.ErrInvalidInput, "roomId must be a valid id", err))
			return
		}
		roomID := uuid.MustParse(q.RoomID)

		res, err := s.Engine.ListMessages(roomID, identity.UserID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.Chat.MessagesRead(roomID, identity.UserID, res.Read)

		writeJSON(w, http.StatusOK, MessagesResponse{RoomID: roomID, Messages: res.Messages})
	}
}

// HandleDeleteMessage handles DELETE /chat/room/message?roomId=&messageId=
func (s *Server) HandleDeleteMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		identity, _ := middleware.GetIdentityFromContext(r.Context())

		q := messageQuery{
			RoomID:    r.URL.Query().Get("roomId"),
			MessageID: r.URL.Query().Get("messageId"),
		}
		if err := s.validate.Struct(q); err != nil {
			s.writeError(w, r, utils.NewAppError(utils.ErrInvalidInput, "roomId and messageId must be valid ids", err))
			return
		}

		msg, err := s.Engine.DeleteMessage(uuid.MustParse(q.RoomID), uuid.MustParse(q.MessageID), identity.UserID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.Chat.MessageDeleted(msg)

		writeJSON(w, http.StatusOK, msg)
	}
}

// HandleUnreadCount handles GET /chat/unread-count
func (s *Server) HandleUnreadCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		identity, _ := middleware.GetIdentityFromContext(r.Context())

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		summary, err := s.Engine.UnreadSummary(ctx, identity.UserID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}
