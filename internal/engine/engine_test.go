package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"uniconnect-chat/internal/database"
	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails SaveRoom while failSaves is set.
type flakyStore struct {
	*database.MemoryStore
	mu        sync.Mutex
	failSaves bool
}

func (s *flakyStore) SaveRoom(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	fail := s.failSaves
	s.mu.Unlock()
	if fail {
		return utils.NewTransientStoreError("save room", errors.New("connection refused"))
	}
	return s.MemoryStore.SaveRoom(ctx, room)
}

func (s *flakyStore) setFailSaves(fail bool) {
	s.mu.Lock()
	s.failSaves = fail
	s.mu.Unlock()
}

func newTestEngine(t *testing.T, store database.RoomStore) *Engine {
	t.Helper()
	system := actor.NewActorSystem()
	e := NewEngine(system, store, utils.NewMetricsCollector(), utils.NewDiscardLogger(), Options{
		RequestTimeout: 5 * time.Second,
	})
	t.Cleanup(e.Stop)
	return e
}

func newPair(t *testing.T, e *Engine) (uuid.UUID, uuid.UUID, uuid.UUID) {
	t.Helper()
	alice, bob := uuid.New(), uuid.New()
	room, created, err := e.GetOrCreateRoom(alice, bob)
	require.NoError(t, err)
	require.True(t, created)
	return room.ID, alice, bob
}

func TestGetOrCreateRoomConcurrentFromBothSides(t *testing.T) {
	store := database.NewMemoryStore()
	e := newTestEngine(t, store)
	alice, bob := uuid.New(), uuid.New()

	const callers = 10
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, callers)
	created := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			self, other := alice, bob
			if i%2 == 1 {
				self, other = bob, alice
			}
			room, isNew, err := e.GetOrCreateRoom(self, other)
			assert.NoError(t, err)
			if room != nil {
				ids[i] = room.ID
			}
			created[i] = isNew
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, countTrue(created))

	rooms, err := store.ListRoomsForUser(context.Background(), alice, 0)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	snapshot, err := e.GetRoom(ids[0], alice)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Messages)
}

func TestGetOrCreateRoomRejectsSelf(t *testing.T) {
	e := newTestEngine(t, database.NewMemoryStore())
	id := uuid.New()

	_, _, err := e.GetOrCreateRoom(id, id)
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidInput))
}

func TestOfflineRecipientJoinsLater(t *testing.T) {
	e := newTestEngine(t, database.NewMemoryStore())
	roomID, alice, bob := newPair(t, e)

	sent, err := e.SendMessage(roomID, alice, "hi")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, sent.Message.Status)
	assert.Equal(t, bob, sent.RecipientID)
	assert.Equal(t, 1, sent.RecipientUnread)

	joined, err := e.JoinRoom(roomID, bob)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{sent.Message.ID}, joined.Delivered)
	assert.Equal(t, []uuid.UUID{sent.Message.ID}, joined.Read)
	assert.Equal(t, 0, joined.Room.UnreadFor(bob))

	room, err := e.GetRoom(roomID, bob)
	require.NoError(t, err)
	msg := room.FindMessage(sent.Message.ID)
	assert.Equal(t, models.StatusRead, msg.Status)
	assert.NotNil(t, msg.DeliveredAt)
	assert.NotNil(t, msg.ReadAt)
}

func TestJoinDeliversWholeBacklogInOneBatch(t *testing.T) {
	e := newTestEngine(t, database.NewMemoryStore())
	roomID, alice, bob := newPair(t, e)

	var ids []uuid.UUID
	for _, text := range []string{"one", "two", "three"} {
		res, err := e.SendMessage(roomID, alice, text)
		require.NoError(t, err)
		ids = append(ids, res.Message.ID)
	}

	summary, err := e.UnreadSummary(context.Background(), bob)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalUnread)

	joined, err := e.JoinRoom(roomID, bob)
	require.NoError(t, err)
	assert.Equal(t, ids, joined.Delivered)
	assert.Equal(t, ids, joined.Read)

	total, err := e.TotalUnread(context.Background(), bob)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestDeliverPendingKeepsUnread(t *testing.T) {
	e := newTestEngine(t, database.NewMemoryStore())
	roomID, alice, bob := newPair(t, e)

	res, err := e.SendMessage(roomID, alice, "ping")
	require.NoError(t, err)

	delivered, err := e.DeliverPending(roomID, bob)
	require.NoError(t, err)
	assert.True(t, delivered.Changed())

	// Second run is a no-op.
	again, err := e.DeliverMessage(roomID, res.Message.ID, bob)
	require.NoError(t, err)
	assert.False(t, again.Changed())

	total, err := e.TotalUnread(context.Background(), bob)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestDeleteReadMessageKeepsStatus(t *testing.T) {
	e := newTestEngine(t, database.NewMemoryStore())
	roomID, alice, bob := newPair(t, e)

	res, err := e.SendMessage(roomID, alice, "secret")
	require.NoError(t, err)
	_, err = e.MarkRead(roomID, bob)
	require.NoError(t, err)

	_, err = e.DeleteMessage(roomID, res.Message.ID, bob)
	assert.True(t, utils.IsErrorCode(err, utils.ErrForbidden))

	deleted, err := e.DeleteMessage(roomID, res.Message.ID, alice)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)

	listed, err := e.ListMessages(roomID, bob)
	require.NoError(t, err)
	require.Len(t, listed.Messages, 1)
	msg := listed.Messages[0]
	assert.True(t, msg.IsDeleted)
	assert.Equal(t, models.DeletedContent, msg.Content)
	assert.Equal(t, models.StatusRead, msg.Status)
}

func TestListMessagesMarksRead(t *testing.T) {
	e := newTestEngine(t, database.NewMemoryStore())
	roomID, alice, bob := newPair(t, e)

	res, err := e.SendMessage(roomID, alice, "hello")
	require.NoError(t, err)

	listed, err := e.ListMessages(roomID, bob)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{res.Message.ID}, listed.Read)
	assert.Equal(t, 0, listed.Room.UnreadFor(bob))

	// The sender listing does not read their own messages.
	listed, err = e.ListMessages(roomID, alice)
	require.NoError(t, err)
	assert.Empty(t, listed.Read)
}

func TestNonParticipantIsRejected(t *testing.T) {
	e := newTestEngine(t, database.NewMemoryStore())
	roomID, _, _ := newPair(t, e)
	stranger := uuid.New()

	_, err := e.SendMessage(roomID, stranger, "hi")
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotParticipant))

	_, err = e.JoinRoom(roomID, stranger)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotParticipant))

	_, err = e.ListMessages(roomID, stranger)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotParticipant))

	_, err = e.Authorize(roomID, stranger)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotParticipant))
}

func TestAuthorizeReturnsSummaryWithoutLog(t *testing.T) {
	e := newTestEngine(t, database.NewMemoryStore())
	roomID, alice, bob := newPair(t, e)
	_, err := e.SendMessage(roomID, alice, "hi")
	require.NoError(t, err)

	room, err := e.Authorize(roomID, bob)
	require.NoError(t, err)
	assert.Equal(t, roomID, room.ID)
	assert.True(t, room.HasParticipant(alice))
	assert.Empty(t, room.Messages)
	assert.Equal(t, 1, room.UnreadFor(bob))
}

func TestMissingRoomIsNotFound(t *testing.T) {
	e := newTestEngine(t, database.NewMemoryStore())

	_, err := e.JoinRoom(uuid.New(), uuid.New())
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestValidationErrors(t *testing.T) {
	e := newTestEngine(t, database.NewMemoryStore())
	roomID, alice, _ := newPair(t, e)

	_, err := e.SendMessage(roomID, alice, "   ")
	assert.True(t, utils.IsErrorCode(err, utils.ErrEmptyContent))

	long := make([]rune, models.DefaultMaxContentLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = e.SendMessage(roomID, alice, string(long))
	assert.True(t, utils.IsErrorCode(err, utils.ErrContentTooLong))
	assert.True(t, utils.IsValidationError(err))
}

func TestStoreFailureIsSurfacedAndRolledBack(t *testing.T) {
	store := &flakyStore{MemoryStore: database.NewMemoryStore()}
	e := newTestEngine(t, store)
	roomID, alice, bob := newPair(t, e)

	store.setFailSaves(true)
	_, err := e.SendMessage(roomID, alice, "lost")
	assert.True(t, utils.IsErrorCode(err, utils.ErrTransientStore))

	store.setFailSaves(false)
	room, err := e.GetRoom(roomID, bob)
	require.NoError(t, err)
	assert.Empty(t, room.Messages)
	assert.Equal(t, 0, room.UnreadFor(bob))

	_, err = e.SendMessage(roomID, alice, "kept")
	require.NoError(t, err)
}

func TestVersionConflictReloadsAndRetries(t *testing.T) {
	store := database.NewMemoryStore()
	e := newTestEngine(t, store)
	roomID, alice, bob := newPair(t, e)

	// Warm the room actor, then write behind its back.
	_, err := e.SendMessage(roomID, alice, "first")
	require.NoError(t, err)

	ctx := context.Background()
	external, err := store.GetRoom(ctx, roomID)
	require.NoError(t, err)
	_, err = external.AppendMessage(bob, "from elsewhere", 0, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.SaveRoom(ctx, external))

	_, err = e.SendMessage(roomID, alice, "second")
	require.NoError(t, err)

	room, err := e.GetRoom(roomID, alice)
	require.NoError(t, err)
	contents := make([]string, 0, len(room.Messages))
	for _, m := range room.Messages {
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"first", "from elsewhere", "second"}, contents)
	assert.Equal(t, 1, room.UnreadFor(alice))
	assert.Equal(t, 2, room.UnreadFor(bob))
}

func TestListRoomsAndUnreadBreakdown(t *testing.T) {
	e := newTestEngine(t, database.NewMemoryStore())
	me := uuid.New()
	friendA, friendB := uuid.New(), uuid.New()

	roomA, _, err := e.GetOrCreateRoom(me, friendA)
	require.NoError(t, err)
	roomB, _, err := e.GetOrCreateRoom(me, friendB)
	require.NoError(t, err)

	_, err = e.SendMessage(roomA.ID, friendA, "a1")
	require.NoError(t, err)
	_, err = e.SendMessage(roomA.ID, friendA, "a2")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = e.SendMessage(roomB.ID, me, "b1")
	require.NoError(t, err)

	rooms, err := e.ListRooms(context.Background(), me)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, roomB.ID, rooms[0].ID)
	assert.Equal(t, roomA.ID, rooms[1].ID)

	summary, err := e.UnreadSummary(context.Background(), me)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalUnread)
	assert.Equal(t, []RoomUnread{{RoomID: roomA.ID, Count: 2}}, summary.UnreadRooms)

	ids, err := e.RoomIDsForUser(context.Background(), me)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{roomA.ID, roomB.ID}, ids)
}

func countTrue(values []bool) int {
	n := 0
	for _, v := range values {
		if v {
			n++
		}
	}
	return n
}
