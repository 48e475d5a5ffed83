package database

import (
	"context"
	"sort"
	"sync"

	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/utils"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MemoryStore keeps rooms in process. It backs DB_TYPE=memory and the tests.
// Rooms go in and come out as clones so callers never share state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]*models.Room
	byPair map[string]uuid.UUID
}

var _ RoomStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:  make(map[uuid.UUID]*models.Room),
		byPair: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) CreateRoom(ctx context.Context, room *models.Room) (*models.Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byPair[room.PairKey()]; ok {
		return s.rooms[id].Clone(), false, nil
	}
	room.Version = 1
	s.rooms[room.ID] = room.Clone()
	s.byPair[room.PairKey()] = room.ID
	return room, true, nil
}

func (s *MemoryStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, utils.NewNotFoundError("conversation")
	}
	return room.Clone(), nil
}

func (s *MemoryStore) FindRoomByPair(ctx context.Context, a, b uuid.UUID) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPair[models.PairKey(a, b)]
	if !ok {
		return nil, nil
	}
	return s.rooms[id].Clone(), nil
}

func (s *MemoryStore) SaveRoom(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.rooms[room.ID]
	if !ok {
		return utils.NewNotFoundError("conversation")
	}
	if stored.Version != room.Version {
		return utils.NewAppError(utils.ErrVersionConflict, "conversation was modified concurrently", nil)
	}

	room.Version++
	s.rooms[room.ID] = room.Clone()
	if !room.IsActive {
		delete(s.byPair, room.PairKey())
	}
	return nil
}

func (s *MemoryStore) ListRoomsForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := lo.FilterMap(lo.Values(s.rooms), func(r *models.Room, _ int) (*models.Room, bool) {
		if !r.IsActive || !r.HasParticipant(userID) {
			return nil, false
		}
		return r.Summary(), true
	})
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].LastMessageAt.After(rooms[j].LastMessageAt)
	})
	if limit > 0 && len(rooms) > limit {
		rooms = rooms[:limit]
	}
	return rooms, nil
}

func (s *MemoryStore) ListRoomIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for id, r := range s.rooms {
		if r.IsActive && r.HasParticipant(userID) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
