package websocket

import (
	"encoding/json"

	"uniconnect-chat/internal/utils"
)

// Inbound events
const (
	EventJoinRoom      = "join-room"
	EventLeaveRoom     = "leave-room"
	EventSendMessage   = "send-message"
	EventTyping        = "typing"
	EventStopTyping    = "stop-typing"
	EventMarkRead      = "mark-read"
	EventDeleteMessage = "delete-message"
)

// Outbound events
const (
	EventJoinedRoom           = "joined-room"
	EventLeftRoom             = "left-room"
	EventNewMessage           = "new-message"
	EventMessageStatusUpdated = "message-status-updated"
	EventMessagesDelivered    = "messages-delivered"
	EventMessagesRead         = "messages-read"
	EventMessageDeleted       = "message-deleted"
	EventUserTyping           = "user-typing"
	EventUserOnline           = "user-online"
	EventUserOffline          = "user-offline"
	EventMessageNotification  = "message-notification"
	EventError                = "error"
)

// InboundFrame is what clients send: {"event": "...", "requestId": "...", "data": {...}}
type InboundFrame struct {
	Event     string          `json:"event"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// OutboundFrame is what the server sends back.
type OutboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// ErrorPayload scopes a failure to the operation and request that caused it.
type ErrorPayload struct {
	Operation string `json:"operation"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

func EncodeFrame(event string, data interface{}) ([]byte, error) {
	return json.Marshal(OutboundFrame{Event: event, Data: data})
}

// EncodeError builds an error frame. Unknown errors are reported as transient store failures.
func EncodeError(operation, requestID string, err error) []byte {
	appErr := utils.AsAppError(err)
	payload, _ := json.Marshal(OutboundFrame{
		Event: EventError,
		Data: ErrorPayload{
			Operation: operation,
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: requestID,
		},
	})
	return payload
}
