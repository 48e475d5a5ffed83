package database

import (
	"context"
	"fmt"
	"time"

	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RoomDocument represents the MongoDB document structure for a chat room
type RoomDocument struct {
	ID            string               `bson:"_id"`
	PairKey       string               `bson:"pairKey"`
	Participants  []string             `bson:"participants"`
	IsActive      bool                 `bson:"isActive"`
	CreatedAt     time.Time            `bson:"createdAt"`
	LastMessageAt time.Time            `bson:"lastMessageAt"`
	Messages      []MessageDocument    `bson:"messages"`
	UnreadCount   map[string]int       `bson:"unreadCount"`
	LastReadAt    map[string]time.Time `bson:"lastReadAt"`
	Version       int64                `bson:"version"`
}

// MessageDocument is a message embedded in its room document
type MessageDocument struct {
	ID          string     `bson:"_id" json:"id"`
	SenderID    string     `bson:"sender" json:"sender"`
	Content     string     `bson:"content" json:"content"`
	CreatedAt   time.Time  `bson:"timestamp" json:"timestamp"`
	Status      string     `bson:"status" json:"status"`
	DeliveredAt *time.Time `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	ReadAt      *time.Time `bson:"readAt,omitempty" json:"readAt,omitempty"`
	IsDeleted   bool       `bson:"isDeleted" json:"isDeleted"`
	DeletedAt   *time.Time `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
}

var _ RoomStore = (*MongoDB)(nil)

// CreateRoom inserts a new room, or returns the active room already stored for the pair
func (m *MongoDB) CreateRoom(ctx context.Context, room *models.Room) (*models.Room, bool, error) {
	room.Version = 1
	doc := toRoomDocument(room)

	_, err := m.Rooms.InsertOne(ctx, doc)
	if err == nil {
		return room, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, utils.NewTransientStoreError("create room", err)
	}

	// Lost the race for this pair; hand back the winner.
	existing, err := m.FindRoomByPair(ctx, room.Participants[0], room.Participants[1])
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, utils.NewTransientStoreError("create room", fmt.Errorf("pair %s conflicted but no active room found", doc.PairKey))
	}
	return existing, false, nil
}

func (m *MongoDB) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var doc RoomDocument
	err := m.Rooms.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewNotFoundError("conversation")
	}
	if err != nil {
		return nil, utils.NewTransientStoreError("get room", err)
	}
	return fromRoomDocument(&doc)
}

func (m *MongoDB) FindRoomByPair(ctx context.Context, a, b uuid.UUID) (*models.Room, error) {
	var doc RoomDocument
	filter := bson.M{"pairKey": models.PairKey(a, b), "isActive": true}
	err := m.Rooms.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewTransientStoreError("find room", err)
	}
	return fromRoomDocument(&doc)
}

// SaveRoom replaces the stored room if its version still matches
func (m *MongoDB) SaveRoom(ctx context.Context, room *models.Room) error {
	expected := room.Version
	doc := toRoomDocument(room)
	doc.Version = expected + 1

	result, err := m.Rooms.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": expected}, doc)
	if err != nil {
		return utils.NewTransientStoreError("save room", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrVersionConflict, "conversation was modified concurrently", nil)
	}
	room.Version = doc.Version
	return nil
}

func (m *MongoDB) ListRoomsForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Room, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "lastMessageAt", Value: -1}}).
		SetProjection(bson.M{"messages": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.Rooms.Find(ctx, bson.M{"participants": userID.String(), "isActive": true}, opts)
	if err != nil {
		return nil, utils.NewTransientStoreError("list rooms", err)
	}
	defer cursor.Close(ctx)

	var docs []RoomDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, utils.NewTransientStoreError("list rooms", err)
	}

	rooms := make([]*models.Room, 0, len(docs))
	for i := range docs {
		room, err := fromRoomDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (m *MongoDB) ListRoomIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := m.Rooms.Find(ctx, bson.M{"participants": userID.String(), "isActive": true}, opts)
	if err != nil {
		return nil, utils.NewTransientStoreError("list room ids", err)
	}
	defer cursor.Close(ctx)

	var ids []uuid.UUID
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, utils.NewTransientStoreError("list room ids", err)
		}
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			return nil, utils.NewTransientStoreError("list room ids", err)
		}
		ids = append(ids, id)
	}
	if err := cursor.Err(); err != nil {
		return nil, utils.NewTransientStoreError("list room ids", err)
	}
	return ids, nil
}

func toRoomDocument(room *models.Room) *RoomDocument {
	doc := &RoomDocument{
		ID:            room.ID.String(),
		PairKey:       room.PairKey(),
		Participants:  []string{room.Participants[0].String(), room.Participants[1].String()},
		IsActive:      room.IsActive,
		CreatedAt:     room.CreatedAt,
		LastMessageAt: room.LastMessageAt,
		Messages:      toMessageDocuments(room.Messages),
		UnreadCount:   make(map[string]int, len(room.UnreadCount)),
		LastReadAt:    make(map[string]time.Time, len(room.LastReadAt)),
		Version:       room.Version,
	}
	for id, n := range room.UnreadCount {
		doc.UnreadCount[id.String()] = n
	}
	for id, at := range room.LastReadAt {
		doc.LastReadAt[id.String()] = at
	}
	return doc
}

func toMessageDocuments(messages []*models.Message) []MessageDocument {
	docs := make([]MessageDocument, 0, len(messages))
	for _, msg := range messages {
		docs = append(docs, MessageDocument{
			ID:          msg.ID.String(),
			SenderID:    msg.SenderID.String(),
			Content:     msg.Content,
			CreatedAt:   msg.CreatedAt,
			Status:      string(msg.Status),
			DeliveredAt: msg.DeliveredAt,
			ReadAt:      msg.ReadAt,
			IsDeleted:   msg.IsDeleted,
			DeletedAt:   msg.DeletedAt,
		})
	}
	return docs
}

func fromRoomDocument(doc *RoomDocument) (*models.Room, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, corruptRoom(doc.ID, err)
	}
	if len(doc.Participants) != 2 {
		return nil, corruptRoom(doc.ID, fmt.Errorf("expected 2 participants, got %d", len(doc.Participants)))
	}

	room := &models.Room{
		ID:            id,
		IsActive:      doc.IsActive,
		CreatedAt:     doc.CreatedAt,
		LastMessageAt: doc.LastMessageAt,
		UnreadCount:   make(map[uuid.UUID]int, len(doc.UnreadCount)),
		LastReadAt:    make(map[uuid.UUID]time.Time, len(doc.LastReadAt)),
		Version:       doc.Version,
	}
	for i, p := range doc.Participants {
		if room.Participants[i], err = uuid.Parse(p); err != nil {
			return nil, corruptRoom(doc.ID, err)
		}
	}
	for k, n := range doc.UnreadCount {
		uid, err := uuid.Parse(k)
		if err != nil {
			return nil, corruptRoom(doc.ID, err)
		}
		room.UnreadCount[uid] = n
	}
	for k, at := range doc.LastReadAt {
		uid, err := uuid.Parse(k)
		if err != nil {
			return nil, corruptRoom(doc.ID, err)
		}
		room.LastReadAt[uid] = at
	}
	if room.Messages, err = fromMessageDocuments(id, doc.Messages); err != nil {
		return nil, corruptRoom(doc.ID, err)
	}
	return room, nil
}

func fromMessageDocuments(roomID uuid.UUID, docs []MessageDocument) ([]*models.Message, error) {
	messages := make([]*models.Message, 0, len(docs))
	for _, d := range docs {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			return nil, err
		}
		sender, err := uuid.Parse(d.SenderID)
		if err != nil {
			return nil, err
		}
		messages = append(messages, &models.Message{
			ID:          id,
			RoomID:      roomID,
			SenderID:    sender,
			Content:     d.Content,
			CreatedAt:   d.CreatedAt,
			Status:      models.MessageStatus(d.Status),
			DeliveredAt: d.DeliveredAt,
			ReadAt:      d.ReadAt,
			IsDeleted:   d.IsDeleted,
			DeletedAt:   d.DeletedAt,
		})
	}
	return messages, nil
}

func corruptRoom(id string, err error) error {
	return utils.NewTransientStoreError("decode room "+id, err)
}
