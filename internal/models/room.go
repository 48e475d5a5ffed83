package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"uniconnect-chat/internal/utils"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DefaultMaxContentLength bounds message content, counted in characters.
const DefaultMaxContentLength = 2000

// Room is a two-party conversation with its message log and per-participant read state.
// A Room is owned by exactly one room actor; everything else works on clones.
type Room struct {
	ID            uuid.UUID               `json:"id"`
	Participants  [2]uuid.UUID            `json:"participants"`
	IsActive      bool                    `json:"isActive"`
	CreatedAt     time.Time               `json:"createdAt"`
	LastMessageAt time.Time               `json:"lastMessageAt"`
	Messages      []*Message              `json:"messages,omitempty"`
	UnreadCount   map[uuid.UUID]int       `json:"unreadCount"`
	LastReadAt    map[uuid.UUID]time.Time `json:"lastReadAt"`

	// Version is bumped by the store on every save and used for optimistic writes.
	Version int64 `json:"-"`
}

// PairKey identifies the unordered pair {a, b}.
func PairKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return x + ":" + y
}

// NewRoom creates an empty active room for two distinct identities.
func NewRoom(a, b uuid.UUID, now time.Time) (*Room, error) {
	if a == uuid.Nil || b == uuid.Nil {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "participant id is required", nil)
	}
	if a == b {
		return nil, utils.NewAppError(utils.ErrInvalidInput, "cannot chat with yourself", nil)
	}
	if b.String() < a.String() {
		a, b = b, a
	}
	return &Room{
		ID:            uuid.New(),
		Participants:  [2]uuid.UUID{a, b},
		IsActive:      true,
		CreatedAt:     now,
		LastMessageAt: now,
		Messages:      make([]*Message, 0),
		UnreadCount:   map[uuid.UUID]int{a: 0, b: 0},
		LastReadAt:    make(map[uuid.UUID]time.Time),
	}, nil
}

func (r *Room) PairKey() string {
	return PairKey(r.Participants[0], r.Participants[1])
}

func (r *Room) HasParticipant(id uuid.UUID) bool {
	return r.Participants[0] == id || r.Participants[1] == id
}

// OtherParticipant returns the peer of id, or false when id is not in the room.
func (r *Room) OtherParticipant(id uuid.UUID) (uuid.UUID, bool) {
	switch id {
	case r.Participants[0]:
		return r.Participants[1], true
	case r.Participants[1]:
		return r.Participants[0], true
	}
	return uuid.Nil, false
}

func (r *Room) FindMessage(id uuid.UUID) *Message {
	m, _ := lo.Find(r.Messages, func(m *Message) bool { return m.ID == id })
	return m
}

func (r *Room) UnreadFor(id uuid.UUID) int {
	return r.UnreadCount[id]
}

// AppendMessage validates and appends a new sent message from sender.
func (r *Room) AppendMessage(sender uuid.UUID, content string, maxLen int, now time.Time) (*Message, error) {
	if !r.HasParticipant(sender) {
		return nil, utils.NewNotParticipantError()
	}
	if !r.IsActive {
		return nil, utils.NewForbiddenError("conversation is no longer active")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, utils.NewAppError(utils.ErrEmptyContent, "message cannot be empty", nil)
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxContentLength
	}
	if utf8.RuneCountInString(content) > maxLen {
		return nil, utils.NewContentTooLongError(maxLen)
	}

	msg := &Message{
		ID:        uuid.New(),
		RoomID:    r.ID,
		SenderID:  sender,
		Content:   content,
		CreatedAt: now,
		Status:    StatusSent,
	}
	r.Messages = append(r.Messages, msg)
	r.LastMessageAt = now
	r.ReconcileUnread()
	return msg, nil
}

// DeliverPending moves every sent message addressed to recipient to delivered.
// It returns the ids that changed, in log order.
func (r *Room) DeliverPending(recipient uuid.UUID, now time.Time) []uuid.UUID {
	sender, ok := r.OtherParticipant(recipient)
	if !ok {
		return nil
	}
	changed := lo.Filter(r.Messages, func(m *Message, _ int) bool {
		return m.SenderID == sender && m.MarkDelivered(now)
	})
	return messageIDs(changed)
}

// DeliverMessage moves a single message addressed to recipient to delivered.
func (r *Room) DeliverMessage(messageID, recipient uuid.UUID, now time.Time) bool {
	m := r.FindMessage(messageID)
	if m == nil || m.SenderID == recipient || !r.HasParticipant(recipient) {
		return false
	}
	return m.MarkDelivered(now)
}

// MarkRead moves every unread message addressed to reader to read and resets the
// reader's unread state.
func (r *Room) MarkRead(reader uuid.UUID, now time.Time) []uuid.UUID {
	sender, ok := r.OtherParticipant(reader)
	if !ok {
		return nil
	}
	changed := lo.Filter(r.Messages, func(m *Message, _ int) bool {
		return m.SenderID == sender && m.MarkRead(now)
	})
	r.LastReadAt[reader] = now
	r.ReconcileUnread()
	return messageIDs(changed)
}

// DeleteMessage tombstones a message on behalf of its sender.
func (r *Room) DeleteMessage(messageID, requester uuid.UUID, now time.Time) (*Message, error) {
	if !r.HasParticipant(requester) {
		return nil, utils.NewNotParticipantError()
	}
	m := r.FindMessage(messageID)
	if m == nil {
		return nil, utils.NewNotFoundError("message")
	}
	if m.SenderID != requester {
		return nil, utils.NewForbiddenError("you can only delete your own messages")
	}
	m.Tombstone(now)
	r.ReconcileUnread()
	return m, nil
}

// ReconcileUnread recomputes the unread counters from the log and reports whether
// the stored counters had drifted.
func (r *Room) ReconcileUnread() bool {
	if r.UnreadCount == nil {
		r.UnreadCount = make(map[uuid.UUID]int, 2)
	}
	drifted := false
	for _, p := range r.Participants {
		count := lo.CountBy(r.Messages, func(m *Message) bool {
			return m.SenderID != p && !m.IsDeleted && m.Status != StatusRead
		})
		if current, ok := r.UnreadCount[p]; !ok || current != count {
			drifted = true
		}
		r.UnreadCount[p] = count
	}
	return drifted
}

// Clone returns a deep copy safe to hand outside the owning actor.
func (r *Room) Clone() *Room {
	c := r.Summary()
	c.Messages = lo.Map(r.Messages, func(m *Message, _ int) *Message { return m.Clone() })
	return c
}

// Summary is a deep copy without the message log.
func (r *Room) Summary() *Room {
	c := *r
	c.Messages = nil
	c.UnreadCount = make(map[uuid.UUID]int, len(r.UnreadCount))
	for k, v := range r.UnreadCount {
		c.UnreadCount[k] = v
	}
	c.LastReadAt = make(map[uuid.UUID]time.Time, len(r.LastReadAt))
	for k, v := range r.LastReadAt {
		c.LastReadAt[k] = v
	}
	return &c
}

func messageIDs(messages []*Message) []uuid.UUID {
	return lo.Map(messages, func(m *Message, _ int) uuid.UUID { return m.ID })
}
