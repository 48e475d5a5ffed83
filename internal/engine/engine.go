package engine

import (
	"context"
	"time"

	"uniconnect-chat/internal/database"
	"uniconnect-chat/internal/engine/actors"
	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	RequestTimeout   time.Duration
	StoreTimeout     time.Duration
	MaxContentLength int
	RoomListLimit    int
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 5 * time.Second
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = o.RequestTimeout / 2
	}
	if o.MaxContentLength <= 0 {
		o.MaxContentLength = models.DefaultMaxContentLength
	}
	if o.RoomListLimit <= 0 {
		o.RoomListLimit = 50
	}
	return o
}

// RoomUnread is one entry of the per-room unread breakdown.
type RoomUnread struct {
	RoomID uuid.UUID `json:"roomId"`
	Count  int       `json:"count"`
}

type UnreadSummary struct {
	TotalUnread int          `json:"totalUnread"`
	UnreadRooms []RoomUnread `json:"unreadRooms"`
}

// Engine is the entry point to the room actors. Mutations are routed to the room's actor;
// listings read the store directly.
type Engine struct {
	system     *actor.ActorSystem
	supervisor *actor.PID
	store      database.RoomStore
	metrics    *utils.MetricsCollector
	log        *logrus.Logger
	opts       Options
}

func NewEngine(system *actor.ActorSystem, store database.RoomStore, metrics *utils.MetricsCollector, log *logrus.Logger, opts Options) *Engine {
	opts = opts.withDefaults()
	cfg := actors.RoomConfig{
		MaxContentLength: opts.MaxContentLength,
		StoreTimeout:     opts.StoreTimeout,
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewRoomSupervisor(store, metrics, log, cfg)
	})

	return &Engine{
		system:     system,
		supervisor: system.Root.Spawn(props),
		store:      store,
		metrics:    metrics,
		log:        log,
		opts:       opts,
	}
}

func (e *Engine) Stop() {
	e.system.Root.Stop(e.supervisor)
}

// GetOrCreateRoom returns the single active room for {userID, otherID}.
func (e *Engine) GetOrCreateRoom(userID, otherID uuid.UUID) (*models.Room, bool, error) {
	ref, err := ask[*actors.RoomRef](e, e.supervisor, &actors.GetOrCreateRoomMsg{UserID: userID, OtherID: otherID}, "RoomSupervisor")
	if err != nil {
		return nil, false, err
	}
	room, err := ask[*models.Room](e, ref.PID, &actors.GetSnapshotMsg{RequesterID: userID}, "RoomActor")
	if err != nil {
		return nil, false, err
	}
	return room.Summary(), ref.Created, nil
}

// GetRoom returns a snapshot of the room including its log.
func (e *Engine) GetRoom(roomID, userID uuid.UUID) (*models.Room, error) {
	return roomAsk[*models.Room](e, roomID, &actors.GetSnapshotMsg{RequesterID: userID})
}

// Authorize checks that userID participates in the room and returns its summary.
func (e *Engine) Authorize(roomID, userID uuid.UUID) (*models.Room, error) {
	return roomAsk[*models.Room](e, roomID, &actors.GetSnapshotMsg{RequesterID: userID, SummaryOnly: true})
}

// JoinRoom delivers and then reads everything pending for userID.
func (e *Engine) JoinRoom(roomID, userID uuid.UUID) (*actors.JoinResult, error) {
	return roomAsk[*actors.JoinResult](e, roomID, &actors.JoinRoomMsg{UserID: userID})
}

func (e *Engine) SendMessage(roomID, senderID uuid.UUID, content string) (*actors.AppendResult, error) {
	return roomAsk[*actors.AppendResult](e, roomID, &actors.AppendMessageMsg{SenderID: senderID, Content: content})
}

func (e *Engine) DeliverPending(roomID, recipientID uuid.UUID) (*actors.TransitionResult, error) {
	return roomAsk[*actors.TransitionResult](e, roomID, &actors.DeliverPendingMsg{RecipientID: recipientID})
}

func (e *Engine) DeliverMessage(roomID, messageID, recipientID uuid.UUID) (*actors.TransitionResult, error) {
	return roomAsk[*actors.TransitionResult](e, roomID, &actors.DeliverMessageMsg{MessageID: messageID, RecipientID: recipientID})
}

func (e *Engine) MarkRead(roomID, readerID uuid.UUID) (*actors.TransitionResult, error) {
	return roomAsk[*actors.TransitionResult](e, roomID, &actors.MarkReadMsg{ReaderID: readerID})
}

func (e *Engine) DeleteMessage(roomID, messageID, requesterID uuid.UUID) (*models.Message, error) {
	return roomAsk[*models.Message](e, roomID, &actors.DeleteMessageMsg{MessageID: messageID, RequesterID: requesterID})
}

// ListMessages returns the room log and marks it read for userID.
func (e *Engine) ListMessages(roomID, userID uuid.UUID) (*actors.MessagesResult, error) {
	return roomAsk[*actors.MessagesResult](e, roomID, &actors.GetMessagesMsg{RequesterID: userID, MarkRead: true})
}

// ListRooms returns the user's active rooms, most recent first, without message logs.
func (e *Engine) ListRooms(ctx context.Context, userID uuid.UUID) ([]*models.Room, error) {
	start := time.Now()
	rooms, err := e.store.ListRoomsForUser(ctx, userID, e.opts.RoomListLimit)
	e.metrics.Observe("list_rooms", start, err)
	return rooms, err
}

// UnreadSummary sums the user's unread counters over all their active rooms.
func (e *Engine) UnreadSummary(ctx context.Context, userID uuid.UUID) (*UnreadSummary, error) {
	start := time.Now()
	rooms, err := e.store.ListRoomsForUser(ctx, userID, 0)
	e.metrics.Observe("unread_summary", start, err)
	if err != nil {
		return nil, err
	}

	summary := &UnreadSummary{
		UnreadRooms: lo.FilterMap(rooms, func(r *models.Room, _ int) (RoomUnread, bool) {
			n := r.UnreadFor(userID)
			return RoomUnread{RoomID: r.ID, Count: n}, n > 0
		}),
	}
	summary.TotalUnread = lo.SumBy(summary.UnreadRooms, func(r RoomUnread) int { return r.Count })
	return summary, nil
}

func (e *Engine) TotalUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	summary, err := e.UnreadSummary(ctx, userID)
	if err != nil {
		return 0, err
	}
	return summary.TotalUnread, nil
}

// RoomIDsForUser is the reverse index from identity to its active rooms.
func (e *Engine) RoomIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return e.store.ListRoomIDsForUser(ctx, userID)
}

func (e *Engine) roomPID(roomID uuid.UUID) (*actor.PID, error) {
	ref, err := ask[*actors.RoomRef](e, e.supervisor, &actors.GetRoomActorMsg{RoomID: roomID}, "RoomSupervisor")
	if err != nil {
		return nil, err
	}
	return ref.PID, nil
}

func roomAsk[T any](e *Engine, roomID uuid.UUID, msg interface{}) (T, error) {
	pid, err := e.roomPID(roomID)
	if err != nil {
		var zero T
		return zero, err
	}
	return ask[T](e, pid, msg, "RoomActor")
}

// ask sends msg and waits for a reply of type T. Actors reply with *utils.AppError on
// failure; an expired future becomes ACTOR_TIMEOUT.
func ask[T any](e *Engine, pid *actor.PID, msg interface{}, actorName string) (T, error) {
	var zero T
	result, err := e.system.Root.RequestFuture(pid, msg, e.opts.RequestTimeout).Result()
	if err != nil {
		e.metrics.IncrementErrors()
		e.log.WithError(err).WithField("actor", actorName).Warn("Actor request failed")
		timeoutErr := utils.NewActorTimeoutError(actorName)
		timeoutErr.Origin = err
		return zero, timeoutErr
	}

	switch r := result.(type) {
	case *utils.AppError:
		return zero, r
	case T:
		return r, nil
	default:
		return zero, utils.NewAppError(utils.ErrActorTimeout, "unexpected response from "+actorName, nil)
	}
}
