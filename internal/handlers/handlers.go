package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"uniconnect-chat/internal/chat"
	"uniconnect-chat/internal/engine"
	"uniconnect-chat/internal/middleware"
	"uniconnect-chat/internal/utils"
	"uniconnect-chat/internal/websocket"

	"github.com/go-playground/validator/v10"
	ws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Server holds all server dependencies: the room engine, the realtime hub and the chat service
type Server struct {
	Engine         *engine.Engine
	Hub            *websocket.Hub
	Chat           *chat.Service
	Auth           *middleware.Authenticator
	CORS           *middleware.CORSConfig
	Metrics        *utils.MetricsCollector
	StoreType      string
	RequestTimeout time.Duration
	FrameLimit     int64 // inbound websocket frame limit; zero keeps the client default

	validate *validator.Validate
	upgrader ws.Upgrader
	log      *logrus.Logger
}

// NewServer creates a new Server instance with the given components
func NewServer(
	eng *engine.Engine,
	hub *websocket.Hub,
	chatService *chat.Service,
	auth *middleware.Authenticator,
	cors *middleware.CORSConfig,
	metrics *utils.MetricsCollector,
	storeType string,
	log *logrus.Logger,
) *Server {
	s := &Server{
		Engine:         eng,
		Hub:            hub,
		Chat:           chatService,
		Auth:           auth,
		CORS:           cors,
		Metrics:        metrics,
		StoreType:      storeType,
		RequestTimeout: 5 * time.Second, // Default timeout for store-backed pulls
		validate:       validator.New(),
		log:            log,
	}
	s.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return s.CORS.OriginAllowed(r.Header.Get("Origin"))
		},
	}
	return s
}

// Routes registers every endpoint on a fresh mux wrapped in CORS.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.HandleHealth())
	mux.HandleFunc("/ws", s.HandleWebSocket())

	mux.HandleFunc("/chat/room", s.Auth.Require(s.HandleRoom()))
	mux.HandleFunc("/chat/rooms", s.Auth.Require(s.HandleListRooms()))
	mux.HandleFunc("/chat/room/messages", s.Auth.Require(s.HandleRoomMessages()))
	mux.HandleFunc("/chat/room/message", s.Auth.Require(s.HandleDeleteMessage()))
	mux.HandleFunc("/chat/unread-count", s.Auth.Require(s.HandleUnreadCount()))

	return middleware.CORSMiddleware(s.CORS)(mux)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps an error onto the status its code implies.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := utils.AsAppError(err)
	status := utils.AppErrorToHTTPStatus(appErr.Code)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	}
	writeJSON(w, status, appErr)
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
