package database

import (
	"context"

	"uniconnect-chat/internal/models"

	"github.com/google/uuid"
)

// RoomStore persists conversations, one record per unordered identity pair.
//
// CreateRoom is idempotent per pair: when an active room already exists for the pair the
// stored room is returned with created=false. SaveRoom is an optimistic write; it fails
// with VERSION_CONFLICT when the stored version no longer matches room.Version and bumps
// room.Version on success. Missing rooms are NOT_FOUND from GetRoom and (nil, nil) from
// FindRoomByPair. Backend failures surface as TRANSIENT_STORE.
type RoomStore interface {
	Close(ctx context.Context) error

	CreateRoom(ctx context.Context, room *models.Room) (stored *models.Room, created bool, err error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	FindRoomByPair(ctx context.Context, a, b uuid.UUID) (*models.Room, error)
	SaveRoom(ctx context.Context, room *models.Room) error

	// ListRoomsForUser returns active rooms without their message log, most recent first.
	// A limit <= 0 means no limit.
	ListRoomsForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Room, error)
	ListRoomIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Store type names accepted by DB_TYPE.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)
