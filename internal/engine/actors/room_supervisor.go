package actors

import (
	"context"
	"time"

	"uniconnect-chat/internal/database"
	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RoomSupervisor resolves rooms to their owning RoomActor, spawning actors on demand.
// Room creation for a pair is serialized through its mailbox, and the store's unique pair
// index covers other processes sharing the same database.
type RoomSupervisor struct {
	store   database.RoomStore
	metrics *utils.MetricsCollector
	log     *logrus.Logger
	cfg     RoomConfig

	rooms  map[uuid.UUID]*actor.PID
	byPair map[string]uuid.UUID
}

func NewRoomSupervisor(store database.RoomStore, metrics *utils.MetricsCollector, log *logrus.Logger, cfg RoomConfig) actor.Actor {
	return &RoomSupervisor{
		store:   store,
		metrics: metrics,
		log:     log,
		cfg:     cfg.withDefaults(),
		rooms:   make(map[uuid.UUID]*actor.PID),
		byPair:  make(map[string]uuid.UUID),
	}
}

func (s *RoomSupervisor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		s.log.Info("RoomSupervisor started")

	case *actor.Stopping:
		s.log.Info("RoomSupervisor stopping")

	case *actor.Terminated:
		s.forget(msg.Who)

	case *GetOrCreateRoomMsg:
		s.handleGetOrCreate(context, msg)

	case *GetRoomActorMsg:
		s.handleGetRoomActor(context, msg)
	}
}

func (s *RoomSupervisor) handleGetOrCreate(context actor.Context, msg *GetOrCreateRoomMsg) {
	start := time.Now()

	// Validates the pair before anything is looked up.
	candidate, err := models.NewRoom(msg.UserID, msg.OtherID, start)
	if err != nil {
		s.fail(context, "get_or_create_room", start, err)
		return
	}

	key := candidate.PairKey()
	if roomID, ok := s.byPair[key]; ok {
		s.metrics.Observe("get_or_create_room", start, nil)
		context.Respond(&RoomRef{RoomID: roomID, PID: s.rooms[roomID]})
		return
	}

	ctx, cancel := s.storeContext()
	defer cancel()

	room, err := s.store.FindRoomByPair(ctx, msg.UserID, msg.OtherID)
	if err != nil {
		s.fail(context, "get_or_create_room", start, err)
		return
	}

	created := false
	if room == nil {
		room, created, err = s.store.CreateRoom(ctx, candidate)
		if err != nil {
			s.fail(context, "get_or_create_room", start, err)
			return
		}
	}

	pid := s.spawnRoom(context, room)
	if created {
		s.log.WithFields(logrus.Fields{
			"room_id": room.ID,
			"pair":    key,
		}).Info("Created room")
	}

	s.metrics.Observe("get_or_create_room", start, nil)
	context.Respond(&RoomRef{RoomID: room.ID, PID: pid, Created: created})
}

func (s *RoomSupervisor) handleGetRoomActor(context actor.Context, msg *GetRoomActorMsg) {
	start := time.Now()
	if pid, ok := s.rooms[msg.RoomID]; ok {
		context.Respond(&RoomRef{RoomID: msg.RoomID, PID: pid})
		return
	}

	ctx, cancel := s.storeContext()
	defer cancel()

	room, err := s.store.GetRoom(ctx, msg.RoomID)
	if err != nil {
		s.fail(context, "get_room", start, err)
		return
	}

	pid := s.spawnRoom(context, room)
	s.metrics.Observe("get_room", start, nil)
	context.Respond(&RoomRef{RoomID: room.ID, PID: pid})
}

func (s *RoomSupervisor) spawnRoom(context actor.Context, room *models.Room) *actor.PID {
	roomID := room.ID
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewRoomActor(roomID, s.store, s.metrics, s.log, s.cfg)
	})
	pid := context.Spawn(props)

	s.rooms[roomID] = pid
	s.byPair[room.PairKey()] = roomID
	return pid
}

func (s *RoomSupervisor) forget(pid *actor.PID) {
	for roomID, p := range s.rooms {
		if p.Id == pid.Id && p.Address == pid.Address {
			delete(s.rooms, roomID)
			for key, id := range s.byPair {
				if id == roomID {
					delete(s.byPair, key)
				}
			}
			s.log.WithField("room_id", roomID).Info("RoomActor terminated")
			return
		}
	}
}

func (s *RoomSupervisor) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
}

func (s *RoomSupervisor) fail(context actor.Context, op string, start time.Time, err error) {
	appErr := utils.AsAppError(err)
	if appErr.Code == utils.ErrTransientStore {
		s.log.WithError(err).WithField("operation", op).Error("Room resolution failed")
	}
	s.metrics.Observe(op, start, appErr)
	context.Respond(appErr)
}
