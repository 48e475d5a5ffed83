// internal/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"uniconnect-chat/internal/models"
	"uniconnect-chat/internal/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	DB  *sqlx.DB
	log *logrus.Logger
}

var _ RoomStore = (*PostgresDB)(nil)

// roomRow mirrors the rooms table. The log and the per-participant maps live in JSONB.
type roomRow struct {
	ID            uuid.UUID `db:"id"`
	PairKey       string    `db:"pair_key"`
	ParticipantA  uuid.UUID `db:"participant_a"`
	ParticipantB  uuid.UUID `db:"participant_b"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
	LastMessageAt time.Time `db:"last_message_at"`
	Messages      []byte    `db:"messages"`
	UnreadCount   []byte    `db:"unread_count"`
	LastReadAt    []byte    `db:"last_read_at"`
	Version       int64     `db:"version"`
}

const roomColumns = `id, pair_key, participant_a, participant_b, is_active, created_at,
	last_message_at, messages, unread_count, last_read_at, version`

// Same columns with the message log blanked, for listings.
const roomSummaryColumns = `id, pair_key, participant_a, participant_b, is_active, created_at,
	last_message_at, '[]'::jsonb AS messages, unread_count, last_read_at, version`

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string, log *logrus.Logger) (*PostgresDB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %v", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Ping the database to verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %v", err)
	}

	log.Info("Successfully connected to PostgreSQL")

	return &PostgresDB{
		DB:  db,
		log: log,
	}, nil
}

// Close closes the database connection
func (p *PostgresDB) Close(ctx context.Context) error {
	p.log.Info("Closing PostgreSQL connection...")
	return p.DB.Close()
}

// InitializeTables creates the rooms table and its indexes if they don't exist
func (p *PostgresDB) InitializeTables(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rooms (
			id UUID PRIMARY KEY,
			pair_key VARCHAR(80) NOT NULL,
			participant_a UUID NOT NULL,
			participant_b UUID NOT NULL,
			is_active BOOLEAN DEFAULT TRUE NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			last_message_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			messages JSONB NOT NULL DEFAULT '[]',
			unread_count JSONB NOT NULL DEFAULT '{}',
			last_read_at JSONB NOT NULL DEFAULT '{}',
			version BIGINT NOT NULL DEFAULT 1
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create rooms table: %v", err)
	}

	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_rooms_active_pair ON rooms(pair_key) WHERE is_active`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_participant_a ON rooms(participant_a, last_message_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_participant_b ON rooms(participant_b, last_message_at DESC)`,
	}
	for _, stmt := range indexes {
		if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create rooms index: %v", err)
		}
	}

	p.log.Info("PostgreSQL tables initialized")
	return nil
}

// CreateRoom inserts a new room, or returns the active room already stored for the pair
func (p *PostgresDB) CreateRoom(ctx context.Context, room *models.Room) (*models.Room, bool, error) {
	room.Version = 1
	row, err := toRoomRow(room)
	if err != nil {
		return nil, false, utils.NewTransientStoreError("create room", err)
	}

	result, err := p.DB.NamedExecContext(ctx, `
		INSERT INTO rooms (`+roomColumns+`)
		VALUES (:id, :pair_key, :participant_a, :participant_b, :is_active, :created_at,
			:last_message_at, :messages, :unread_count, :last_read_at, :version)
		ON CONFLICT (pair_key) WHERE is_active DO NOTHING
	`, row)
	if err != nil {
		return nil, false, utils.NewTransientStoreError("create room", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, false, utils.NewTransientStoreError("create room", err)
	}
	if inserted == 1 {
		return room, true, nil
	}

	existing, err := p.FindRoomByPair(ctx, room.Participants[0], room.Participants[1])
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, utils.NewTransientStoreError("create room", fmt.Errorf("pair %s conflicted but no active room found", row.PairKey))
	}
	return existing, false, nil
}

func (p *PostgresDB) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var row roomRow
	err := p.DB.GetContext(ctx, &row, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, utils.NewNotFoundError("conversation")
	}
	if err != nil {
		return nil, utils.NewTransientStoreError("get room", err)
	}
	return fromRoomRow(&row)
}

func (p *PostgresDB) FindRoomByPair(ctx context.Context, a, b uuid.UUID) (*models.Room, error) {
	var row roomRow
	err := p.DB.GetContext(ctx, &row,
		`SELECT `+roomColumns+` FROM rooms WHERE pair_key = $1 AND is_active`, models.PairKey(a, b))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewTransientStoreError("find room", err)
	}
	return fromRoomRow(&row)
}

// SaveRoom writes the room if its version still matches
func (p *PostgresDB) SaveRoom(ctx context.Context, room *models.Room) error {
	row, err := toRoomRow(room)
	if err != nil {
		return utils.NewTransientStoreError("save room", err)
	}

	result, err := p.DB.ExecContext(ctx, `
		UPDATE rooms
		SET is_active = $3, last_message_at = $4, messages = $5, unread_count = $6,
			last_read_at = $7, version = version + 1
		WHERE id = $1 AND version = $2
	`, row.ID, row.Version, row.IsActive, row.LastMessageAt, row.Messages, row.UnreadCount, row.LastReadAt)
	if err != nil {
		return utils.NewTransientStoreError("save room", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return utils.NewTransientStoreError("save room", err)
	}
	if updated == 0 {
		return utils.NewAppError(utils.ErrVersionConflict, "conversation was modified concurrently", nil)
	}
	room.Version++
	return nil
}

func (p *PostgresDB) ListRoomsForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Room, error) {
	query := `
		SELECT ` + roomSummaryColumns + `
		FROM rooms
		WHERE (participant_a = $1 OR participant_b = $1) AND is_active
		ORDER BY last_message_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	var rows []roomRow
	if err := p.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, utils.NewTransientStoreError("list rooms", err)
	}

	rooms := make([]*models.Room, 0, len(rows))
	for i := range rows {
		room, err := fromRoomRow(&rows[i])
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (p *PostgresDB) ListRoomIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.DB.SelectContext(ctx, &ids,
		`SELECT id FROM rooms WHERE (participant_a = $1 OR participant_b = $1) AND is_active`, userID)
	if err != nil {
		return nil, utils.NewTransientStoreError("list room ids", err)
	}
	return ids, nil
}

func toRoomRow(room *models.Room) (*roomRow, error) {
	messages, err := json.Marshal(toMessageDocuments(room.Messages))
	if err != nil {
		return nil, err
	}

	// JSON object keys must be strings.
	unread := make(map[string]int, len(room.UnreadCount))
	for id, n := range room.UnreadCount {
		unread[id.String()] = n
	}
	unreadJSON, err := json.Marshal(unread)
	if err != nil {
		return nil, err
	}
	lastRead := make(map[string]time.Time, len(room.LastReadAt))
	for id, at := range room.LastReadAt {
		lastRead[id.String()] = at
	}
	lastReadJSON, err := json.Marshal(lastRead)
	if err != nil {
		return nil, err
	}

	return &roomRow{
		ID:            room.ID,
		PairKey:       room.PairKey(),
		ParticipantA:  room.Participants[0],
		ParticipantB:  room.Participants[1],
		IsActive:      room.IsActive,
		CreatedAt:     room.CreatedAt,
		LastMessageAt: room.LastMessageAt,
		Messages:      messages,
		UnreadCount:   unreadJSON,
		LastReadAt:    lastReadJSON,
		Version:       room.Version,
	}, nil
}

// fromRoomRow reuses the document decoding so both backends agree on the stored shape
func fromRoomRow(row *roomRow) (*models.Room, error) {
	doc := &RoomDocument{
		ID:            row.ID.String(),
		PairKey:       row.PairKey,
		Participants:  []string{row.ParticipantA.String(), row.ParticipantB.String()},
		IsActive:      row.IsActive,
		CreatedAt:     row.CreatedAt,
		LastMessageAt: row.LastMessageAt,
		Version:       row.Version,
	}
	if err := json.Unmarshal(row.Messages, &doc.Messages); err != nil {
		return nil, corruptRoom(doc.ID, err)
	}
	if err := json.Unmarshal(row.UnreadCount, &doc.UnreadCount); err != nil {
		return nil, corruptRoom(doc.ID, err)
	}
	if err := json.Unmarshal(row.LastReadAt, &doc.LastReadAt); err != nil {
		return nil, corruptRoom(doc.ID, err)
	}
	return fromRoomDocument(doc)
}
