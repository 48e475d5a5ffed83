package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"uniconnect-chat/internal/config"
	"uniconnect-chat/internal/database"
	"uniconnect-chat/internal/handlers"
	"uniconnect-chat/internal/notify"
	"uniconnect-chat/internal/utils"
	"uniconnect-chat/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// waitFor reads frames until one with the given event arrives.
func waitFor(t *testing.T, conn *ws.Conn, event string) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", event)
		if f.Event == event {
			return f
		}
	}
}

func TestIntegrationFlow(t *testing.T) {
	t.Setenv("JWT_SECRET", "integration-secret")
	t.Setenv("DB_TYPE", "memory")
	cfg, err := config.FromEnvironment()
	require.NoError(t, err)

	logger := utils.NewDiscardLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	require.NoError(t, err)
	app := NewApp(cfg, store, logger)
	defer app.Close(context.Background())
	go app.Fanout.Run(ctx)

	srv := httptest.NewServer(app.Server.Routes())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token="

	alice, bob := uuid.New(), uuid.New()
	aliceToken, err := app.Server.Auth.GenerateToken(alice, "Alice")
	require.NoError(t, err)
	bobToken, err := app.Server.Auth.GenerateToken(bob, "Bob")
	require.NoError(t, err)

	// Step 1: Alice opens the conversation over HTTP
	body, _ := json.Marshal(handlers.CreateRoomRequest{OtherUserID: bob.String()})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/chat/room", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var room handlers.RoomView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
	roomData := map[string]string{"roomId": room.ID.String()}

	// Step 2: Alice connects and joins the room
	aliceConn, _, err := ws.DefaultDialer.Dial(wsURL+aliceToken, nil)
	require.NoError(t, err)
	defer aliceConn.Close()
	require.NoError(t, aliceConn.WriteJSON(map[string]interface{}{"event": websocket.EventJoinRoom, "data": roomData}))
	waitFor(t, aliceConn, websocket.EventJoinedRoom)

	// Step 3: Bob comes online without opening the room
	bobConn, _, err := ws.DefaultDialer.Dial(wsURL+bobToken, nil)
	require.NoError(t, err)
	online := waitFor(t, aliceConn, websocket.EventUserOnline)
	assert.Contains(t, string(online.Data), bob.String())

	// Step 4: Alice writes; Bob is notified on his personal channel
	require.NoError(t, aliceConn.WriteJSON(map[string]interface{}{
		"event": websocket.EventSendMessage,
		"data":  map[string]string{"roomId": room.ID.String(), "content": "  hi Bob  "},
	}))
	waitFor(t, aliceConn, websocket.EventNewMessage)

	note := waitFor(t, bobConn, websocket.EventMessageNotification)
	var payload notify.Payload
	require.NoError(t, json.Unmarshal(note.Data, &payload))
	assert.Equal(t, room.ID, payload.RoomID)
	assert.Equal(t, "hi Bob", payload.Message.Content)
	assert.Equal(t, "Alice", payload.Sender.Name)
	assert.Equal(t, 1, payload.UnreadCount)
	require.NotNil(t, payload.TotalUnread)
	assert.Equal(t, 1, *payload.TotalUnread)

	// Step 5: Bob opens the room; Alice sees delivery then read
	require.NoError(t, bobConn.WriteJSON(map[string]interface{}{"event": websocket.EventJoinRoom, "data": roomData}))
	waitFor(t, bobConn, websocket.EventJoinedRoom)
	waitFor(t, aliceConn, websocket.EventMessagesDelivered)
	waitFor(t, aliceConn, websocket.EventMessagesRead)

	stored, err := store.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.UnreadFor(bob))

	// Step 6: Bob leaves for good
	bobConn.Close()
	offline := waitFor(t, aliceConn, websocket.EventUserOffline)
	assert.Contains(t, string(offline.Data), bob.String())
}

func TestOpenStoreRejectsUnknownType(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Type: "cassandra"}}
	_, err := openStore(context.Background(), cfg, utils.NewDiscardLogger())
	assert.Error(t, err)

	cfg.Database.Type = database.StoreMemory
	store, err := openStore(context.Background(), cfg, utils.NewDiscardLogger())
	require.NoError(t, err)
	assert.IsType(t, &database.MemoryStore{}, store)
}
