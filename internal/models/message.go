package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus is the delivery state of a message. It only moves forward.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// DeletedContent replaces the content of a soft-deleted message.
const DeletedContent = "This message was deleted"

// Rank orders statuses along sent < delivered < read.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Message is one entry of a room's append-only log.
type Message struct {
	ID          uuid.UUID     `json:"id"`
	RoomID      uuid.UUID     `json:"roomId"`
	SenderID    uuid.UUID     `json:"senderId"`
	Content     string        `json:"content"`
	CreatedAt   time.Time     `json:"createdAt"`
	Status      MessageStatus `json:"status"`
	DeliveredAt *time.Time    `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time    `json:"readAt,omitempty"`
	IsDeleted   bool          `json:"isDeleted"`
	DeletedAt   *time.Time    `json:"deletedAt,omitempty"`
}

// MarkDelivered moves a sent message to delivered. It reports whether anything changed;
// deleted messages and messages already delivered or read are left alone.
func (m *Message) MarkDelivered(at time.Time) bool {
	if m.IsDeleted || m.Status.Rank() >= StatusDelivered.Rank() {
		return false
	}
	m.Status = StatusDelivered
	m.DeliveredAt = timePtr(at)
	return true
}

// MarkRead moves a message to read. A message read straight from sent is promoted
// through delivered, stamping deliveredAt with the read time.
func (m *Message) MarkRead(at time.Time) bool {
	if m.IsDeleted || m.Status == StatusRead {
		return false
	}
	if m.DeliveredAt == nil {
		m.DeliveredAt = timePtr(at)
	}
	m.Status = StatusRead
	m.ReadAt = timePtr(at)
	return true
}

// Tombstone soft-deletes the message. Status and timestamps freeze from here on.
func (m *Message) Tombstone(at time.Time) bool {
	if m.IsDeleted {
		return false
	}
	m.IsDeleted = true
	m.Content = DeletedContent
	m.DeletedAt = timePtr(at)
	return true
}

func (m *Message) Clone() *Message {
	c := *m
	c.DeliveredAt = copyTime(m.DeliveredAt)
	c.ReadAt = copyTime(m.ReadAt)
	c.DeletedAt = copyTime(m.DeletedAt)
	return &c
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return timePtr(*t)
}
