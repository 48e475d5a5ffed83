package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Worst case for one character inside a JSON string: a surrogate pair sent as two
	// \uXXXX escapes.
	escapedRuneSize = 12

	// Envelope, ids and the remaining fields of a frame.
	frameOverhead = 8 * 1024

	// Frames past this close the connection.
	maxFrameCeiling = 1 << 20

	// Outbound frames buffered per connection before drops start.
	SendBufferSize = 256
)

// FrameHandler processes inbound frames. Frames from one connection are handled one at a
// time, in arrival order.
type FrameHandler interface {
	HandleFrame(client *Client, frame *InboundFrame)
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	ID  uuid.UUID
	Hub *Hub

	// The identity this connection was authenticated as.
	UserID   uuid.UUID
	UserName string

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages. Closed by the hub on unregister.
	Send chan []byte

	Handler FrameHandler

	// Frames larger than FrameLimit are discarded and answered with CONTENT_TOO_LONG.
	FrameLimit int64

	log *logrus.Entry
}

// FrameLimit is the largest inbound frame that can carry a message of maxContentLength
// characters, however the client escapes them.
func FrameLimit(maxContentLength int) int64 {
	if maxContentLength <= 0 {
		maxContentLength = models.DefaultMaxContentLength
	}
	return int64(maxContentLength)*escapedRuneSize + frameOverhead
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, userName string, handler FrameHandler, log *logrus.Logger) *Client {
	id := uuid.New()
	return &Client{
		ID:         id,
		Hub:        hub,
		UserID:     userID,
		UserName:   userName,
		Conn:       conn,
		Send:       make(chan []byte, SendBufferSize),
		Handler:    handler,
		FrameLimit: FrameLimit(0),
		log: log.WithFields(logrus.Fields{
			"user_id":       userID,
			"connection_id": id,
		}),
	}
}

// SendFrame encodes and queues an event for this connection only.
func (c *Client) SendFrame(event string, data interface{}) bool {
	payload, err := EncodeFrame(event, data)
	if err != nil {
		c.log.WithError(err).WithField("event", event).Error("Failed to encode frame")
		return false
	}
	return c.Hub.SendToClient(c, payload)
}

// SendError reports a failed operation back to this connection. The connection stays open.
func (c *Client) SendError(operation, requestID string, err error) {
	c.Hub.SendToClient(c, EncodeError(operation, requestID, err))
}

// ReadPump pumps frames from the websocket connection to the handler.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
		c.log.Debug("WebSocket client ReadPump stopped")
	}()
	c.Conn.SetReadLimit(max(maxFrameCeiling, 2*c.FrameLimit))
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, r, err := c.Conn.NextReader()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("WebSocket read error")
			}
			break
		}
		message, err := io.ReadAll(io.LimitReader(r, c.FrameLimit+1))
		if err != nil {
			c.log.WithError(err).Warn("WebSocket read error")
			break
		}
		if int64(len(message)) > c.FrameLimit {
			if _, err := io.Copy(io.Discard, r); err != nil {
				c.log.WithError(err).Warn("WebSocket frame over the hard limit")
				break
			}
			event, requestID := frameHeader(message)
			c.SendError(event, requestID, utils.NewAppError(utils.ErrContentTooLong,
				fmt.Sprintf("frame exceeds %d bytes", c.FrameLimit), nil))
			continue
		}

		var frame InboundFrame
		if err := json.Unmarshal(message, &frame); err != nil || frame.Event == "" {
			c.SendError("unknown", "", utils.NewAppError(utils.ErrInvalidInput, "malformed frame", err))
			continue
		}
		c.Handler.HandleFrame(c, &frame)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.log.Debug("WebSocket client WritePump stopped")
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per websocket message; clients parse each as a JSON document.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.WithError(err).Warn("WebSocket write error")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.WithError(err).Warn("WebSocket ping error")
				return
			}
		}
	}
}

// frameHeader pulls event and requestId out of the start of a truncated frame.
func frameHeader(prefix []byte) (event, requestID string) {
	event = "unknown"
	dec := json.NewDecoder(bytes.NewReader(prefix))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return event, ""
	}
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return event, requestID
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return event, requestID
		}
		switch key {
		case "event":
			_ = json.Unmarshal(value, &event)
		case "requestId":
			_ = json.Unmarshal(value, &requestID)
		}
	}
	return event, requestID
}
