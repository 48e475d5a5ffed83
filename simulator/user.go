package simulator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/samber/lo"
)

var errNotConnected = errors.New("user is not connected")

// SimulatedUser is one synthetic identity with at most one live session.
type SimulatedUser struct {
	ID    uuid.UUID
	Name  string
	Token string

	mu       sync.Mutex
	conn     *ws.Conn
	rooms    []uuid.UUID
	openRoom uuid.UUID
	pending  map[string]time.Time // content -> send time, awaiting the echo
}

func newSimulatedUser(name string) *SimulatedUser {
	return &SimulatedUser{
		ID:      uuid.New(),
		Name:    name,
		pending: make(map[string]time.Time),
	}
}

// addRoom reports whether the room was new for this user.
func (u *SimulatedUser) addRoom(roomID uuid.UUID) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if lo.Contains(u.rooms, roomID) {
		return false
	}
	u.rooms = append(u.rooms, roomID)
	return true
}

func (u *SimulatedUser) Rooms() []uuid.UUID {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]uuid.UUID(nil), u.rooms...)
}

func (u *SimulatedUser) OpenRoom() uuid.UUID {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.openRoom
}

func (u *SimulatedUser) Connected() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.conn != nil
}

func (u *SimulatedUser) attach(conn *ws.Conn, openRoom uuid.UUID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.conn = conn
	u.openRoom = openRoom
}

// detach forgets conn if it is still the current session.
func (u *SimulatedUser) detach(conn *ws.Conn) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == conn {
		u.conn = nil
		u.openRoom = uuid.Nil
	}
}

func (u *SimulatedUser) disconnect() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn != nil {
		u.conn.Close()
		u.conn = nil
		u.openRoom = uuid.Nil
	}
}

// send writes one frame; gorilla connections allow a single concurrent writer.
func (u *SimulatedUser) send(event string, data interface{}) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return errNotConnected
	}
	u.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return u.conn.WriteJSON(map[string]interface{}{
		"event":     event,
		"requestId": uuid.NewString(),
		"data":      data,
	})
}

func (u *SimulatedUser) expect(content string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending[content] = time.Now()
}

func (u *SimulatedUser) takePending(content string) (time.Time, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	sent, ok := u.pending[content]
	delete(u.pending, content)
	return sent, ok
}

func dial(ctx context.Context, url string) (*ws.Conn, error) {
	conn, _, err := ws.DefaultDialer.DialContext(ctx, url, nil)
	return conn, err
}
