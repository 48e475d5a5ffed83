package handlers

import (
	"net/http"

	"uniconnect-chat/internal/websocket"

	"github.com/sirupsen/logrus"
)

// HandleWebSocket handles WebSocket connection requests.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// 1. Authenticate before upgrading; a rejected handshake is never upgraded
		identity, err := s.Auth.Authenticate(r)
		if err != nil {
			s.log.WithError(err).Debug("WebSocket connection rejected")
			s.writeError(w, r, err)
			return
		}

		// 2. Upgrade connection
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// The upgrader has already written the HTTP error
			s.log.WithError(err).WithField("user_id", identity.UserID).Warn("WebSocket upgrade failed")
			return
		}

		// 3. Create and register the client
		client := websocket.NewClient(s.Hub, conn, identity.UserID, identity.Name, s.Chat, s.log)
		if s.FrameLimit > 0 {
			client.FrameLimit = s.FrameLimit
		}
		s.Hub.Register(client)

		s.log.WithFields(logrus.Fields{
			"user_id":       identity.UserID,
			"connection_id": client.ID,
		}).Info("WebSocket client connected")

		// 4. Start read and write pumps
		go client.WritePump()
		go client.ReadPump()
	}
}
