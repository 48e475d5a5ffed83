package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"uniconnect-chat/internal/chat"
	"uniconnect-chat/internal/database"
	"uniconnect-chat/internal/engine"
	"uniconnect-chat/internal/middleware"
	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/notify"
	"uniconnect-chat/internal/utils"
	"uniconnect-chat/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type HandlersSuite struct {
	suite.Suite

	engine  *engine.Engine
	hub     *websocket.Hub
	auth    *middleware.Authenticator
	server  *Server
	handler http.Handler

	alice, bob uuid.UUID
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	log := utils.NewDiscardLogger()
	metrics := utils.NewMetricsCollector()

	s.engine = engine.NewEngine(actor.NewActorSystem(), database.NewMemoryStore(), metrics, log, engine.Options{})
	s.hub = websocket.NewHub(log)
	s.auth = middleware.NewAuthenticator("test-secret", log)

	fanout := notify.NewFanout(s.engine, s.hub, log, 16, time.Second)
	service := chat.NewService(s.engine, s.hub, fanout, metrics, log)

	s.server = NewServer(s.engine, s.hub, service, s.auth, middleware.DefaultCORSConfig(nil), metrics, database.StoreMemory, log)
	s.handler = s.server.Routes()
	s.alice, s.bob = uuid.New(), uuid.New()
}

func (s *HandlersSuite) TearDownTest() {
	s.engine.Stop()
}

func (s *HandlersSuite) token(userID uuid.UUID) string {
	token, err := s.auth.GenerateToken(userID, "user-"+userID.String()[:4])
	s.Require().NoError(err)
	return token
}

func (s *HandlersSuite) do(method, target string, userID uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if userID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+s.token(userID))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *HandlersSuite) createRoom() RoomView {
	rec := s.do(http.MethodPost, "/chat/room", s.alice, CreateRoomRequest{OtherUserID: s.bob.String()})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var view RoomView
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&view))
	return view
}

func (s *HandlersSuite) TestCreateRoomIsIdempotent() {
	view := s.createRoom()
	s.Equal(s.bob, view.OtherUserID)

	rec := s.do(http.MethodPost, "/chat/room", s.bob, CreateRoomRequest{OtherUserID: s.alice.String()})
	s.Equal(http.StatusOK, rec.Code)
	var again RoomView
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&again))
	s.Equal(view.ID, again.ID)
	s.Equal(s.alice, again.OtherUserID)
}

func (s *HandlersSuite) TestCreateRoomRejectsBadInput() {
	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"self", CreateRoomRequest{OtherUserID: s.alice.String()}, http.StatusBadRequest},
		{"not an id", CreateRoomRequest{OtherUserID: "bob"}, http.StatusBadRequest},
		{"missing", map[string]string{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.do(http.MethodPost, "/chat/room", s.alice, tt.body)
			s.Equal(tt.status, rec.Code)
			var appErr utils.AppError
			s.Require().NoError(json.NewDecoder(rec.Body).Decode(&appErr))
			s.Equal(utils.ErrInvalidInput, appErr.Code)
		})
	}
}

func (s *HandlersSuite) TestRequiresAuthentication() {
	for _, path := range []string{"/chat/rooms", "/chat/unread-count", "/chat/room/messages?roomId=" + uuid.NewString()} {
		rec := s.do(http.MethodGet, path, uuid.Nil, nil)
		s.Equal(http.StatusUnauthorized, rec.Code, path)
	}
}

func (s *HandlersSuite) TestMessagesMarkReadAndNotifyPeer() {
	view := s.createRoom()
	sent, err := s.engine.SendMessage(view.ID, s.alice, "hello bob")
	s.Require().NoError(err)

	// Alice watches the room.
	aliceConn := websocket.NewClient(s.hub, nil, s.alice, "alice", s.server.Chat, utils.NewDiscardLogger())
	s.hub.Register(aliceConn)
	s.hub.JoinRoom(aliceConn, view.ID)

	rec := s.do(http.MethodGet, "/chat/unread-count", s.bob, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var summary engine.UnreadSummary
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&summary))
	s.Equal(1, summary.TotalUnread)
	s.Equal([]engine.RoomUnread{{RoomID: view.ID, Count: 1}}, summary.UnreadRooms)

	rec = s.do(http.MethodGet, "/chat/room/messages?roomId="+view.ID.String(), s.bob, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp MessagesResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Require().Len(resp.Messages, 1)
	s.Equal(sent.Message.ID, resp.Messages[0].ID)
	s.Equal(models.StatusRead, resp.Messages[0].Status)

	select {
	case payload := <-aliceConn.Send:
		s.Contains(string(payload), websocket.EventMessagesRead)
		s.Contains(string(payload), sent.Message.ID.String())
	case <-time.After(time.Second):
		s.Fail("alice was not told about the read")
	}

	rec = s.do(http.MethodGet, "/chat/unread-count", s.bob, nil)
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&summary))
	s.Zero(summary.TotalUnread)
	s.Empty(summary.UnreadRooms)
}

func (s *HandlersSuite) TestMessagesForStrangerIsForbidden() {
	view := s.createRoom()
	rec := s.do(http.MethodGet, "/chat/room/messages?roomId="+view.ID.String(), uuid.New(), nil)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/chat/room/messages?roomId="+uuid.NewString(), s.alice, nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/chat/room/messages?roomId=nope", s.alice, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlersSuite) TestDeleteMessage() {
	view := s.createRoom()
	sent, err := s.engine.SendMessage(view.ID, s.alice, "oops")
	s.Require().NoError(err)
	target := "/chat/room/message?roomId=" + view.ID.String() + "&messageId=" + sent.Message.ID.String()

	rec := s.do(http.MethodDelete, target, s.bob, nil)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodDelete, target, s.alice, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var msg models.Message
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&msg))
	s.True(msg.IsDeleted)
	s.Equal(models.DeletedContent, msg.Content)

	rec = s.do(http.MethodGet, target, s.alice, nil)
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func (s *HandlersSuite) TestListRooms() {
	first := s.createRoom()
	carol := uuid.New()
	rec := s.do(http.MethodPost, "/chat/room", s.alice, CreateRoomRequest{OtherUserID: carol.String()})
	s.Require().Equal(http.StatusCreated, rec.Code)

	_, err := s.engine.SendMessage(first.ID, s.bob, "bump")
	s.Require().NoError(err)

	rec = s.do(http.MethodGet, "/chat/rooms", s.alice, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var rooms []RoomView
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&rooms))
	s.Require().Len(rooms, 2)
	s.Equal(first.ID, rooms[0].ID)
	s.Equal(1, rooms[0].UnreadCount)
	s.Equal(carol, rooms[1].OtherUserID)
}

func (s *HandlersSuite) TestRoomViewsShowPeerPresence() {
	view := s.createRoom()
	s.False(view.OtherUserOnline)

	bobConn := websocket.NewClient(s.hub, nil, s.bob, "bob", s.server.Chat, utils.NewDiscardLogger())
	s.hub.Register(bobConn)

	rec := s.do(http.MethodGet, "/chat/rooms", s.alice, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var rooms []RoomView
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&rooms))
	s.Require().Len(rooms, 1)
	s.True(rooms[0].OtherUserOnline)

	// Bob sees alice offline.
	rec = s.do(http.MethodPost, "/chat/room", s.bob, CreateRoomRequest{OtherUserID: s.alice.String()})
	s.Require().Equal(http.StatusOK, rec.Code)
	var fromBob RoomView
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&fromBob))
	s.Equal(view.ID, fromBob.ID)
	s.False(fromBob.OtherUserOnline)

	s.hub.Unregister(bobConn)
	rec = s.do(http.MethodGet, "/chat/rooms", s.alice, nil)
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&rooms))
	s.False(rooms[0].OtherUserOnline)
}

func (s *HandlersSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", uuid.Nil, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var health HealthResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&health))
	s.Equal("healthy", health.Status)
	s.Equal(database.StoreMemory, health.Store)
}

func (s *HandlersSuite) TestWebSocketHandshake() {
	srv := httptest.NewServer(s.handler)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := ws.DefaultDialer.Dial(base, nil)
	s.Require().Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = ws.DefaultDialer.Dial(base+"?token=forged", nil)
	s.Require().Error(err)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := ws.DefaultDialer.Dial(base+"?token="+s.token(s.alice), nil)
	s.Require().NoError(err)
	defer conn.Close()
	s.Eventually(func() bool { return s.hub.IsOnline(s.alice) }, time.Second, 10*time.Millisecond)

	view := s.createRoom()
	s.Require().NoError(conn.WriteJSON(map[string]interface{}{
		"event":     websocket.EventJoinRoom,
		"requestId": "join-1",
		"data":      map[string]string{"roomId": view.ID.String()},
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Event string `json:"event"`
	}
	s.Require().NoError(conn.ReadJSON(&frame))
	s.Equal(websocket.EventJoinedRoom, frame.Event)

	conn.Close()
	s.Eventually(func() bool { return !s.hub.IsOnline(s.alice) }, time.Second, 10*time.Millisecond)
}
