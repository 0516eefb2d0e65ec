package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/codecollab-server/internal/store"
)

//go:embed schema.sql
var schema string

// driverName is go-sqlite3 with go_lower registered on every connection.
// SQLite's own lower() folds ASCII only.
const driverName = "sqlite3_codecollab"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("go_lower", strings.ToLower, true)
		},
	})
}

// SQLiteStore implements store.RoomStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.RoomStore = (*SQLiteStore)(nil)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens (creating if needed) the SQLite database at dbPath and applies the schema.
// Use ":memory:" for a throwaway database.
func New(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open(driverName, dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRoom inserts a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, params store.CreateRoomParams) (*store.Room, error) {
	params = params.WithDefaults()
	now := store.Now().UnixMilli()

	query := `
		INSERT INTO rooms (room_id, code, language, title, description, created_by, is_public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		params.RoomID,
		store.DefaultCode,
		params.Language,
		params.Title,
		params.Description,
		params.CreatedBy,
		now,
		now,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("insert room %q: %w", params.RoomID, store.ErrDuplicateRoom)
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}

	return getRoom(ctx, s.db, params.RoomID)
}

// GetRoom retrieves a room by id.
func (s *SQLiteStore) GetRoom(ctx context.Context, roomID string) (*store.Room, error) {
	return getRoom(ctx, s.db, roomID)
}

// UpdateRoom applies a partial update.
func (s *SQLiteStore) UpdateRoom(ctx context.Context, roomID string, update store.RoomUpdate) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	// COALESCE keeps the current value for nil (NULL) fields.
	query := `
		UPDATE rooms SET
			code        = COALESCE(?, code),
			language    = COALESCE(?, language),
			title       = COALESCE(?, title),
			description = COALESCE(?, description),
			updated_at  = MAX(updated_at, ?)
		WHERE room_id = ?
	`
	result, err := tx.ExecContext(ctx, query,
		nullString(update.Code),
		nullString(update.Language),
		nullString(update.Title),
		nullString(update.Description),
		store.Now().UnixMilli(),
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("update room: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("update room %q: %w", roomID, store.ErrNotFound)
	}

	room, err := getRoom(ctx, tx, roomID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return room, nil
}

// ListPublicRooms returns a page of public rooms ordered by last update.
func (s *SQLiteStore) ListPublicRooms(ctx context.Context, params store.ListParams) ([]*store.Room, int, error) {
	where := `WHERE is_public = 1`
	var args []any
	if search := strings.TrimSpace(params.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		where += ` AND (go_lower(title) LIKE ? ESCAPE '\' OR go_lower(description) LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rooms: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = -1 // no limit
	}
	query := `
		SELECT room_id, code, language, title, description, created_by, is_public, created_at, updated_at
		FROM rooms ` + where + `
		ORDER BY updated_at DESC, room_id ASC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, params.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("query rooms: %w", err)
	}

	var rooms []*store.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, fmt.Errorf("iterate rooms: %w", err)
	}
	// Close before loading participants: the pool holds a single connection.
	rows.Close()

	for _, room := range rooms {
		participants, err := listParticipants(ctx, s.db, room.RoomID)
		if err != nil {
			return nil, 0, err
		}
		room.Participants = participants
	}

	return rooms, total, nil
}

// DeleteRoom removes a room and its participants.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, roomID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM room_participants WHERE room_id = ?`, roomID); err != nil {
		return false, fmt.Errorf("delete participants: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = ?`, roomID)
	if err != nil {
		return false, fmt.Errorf("delete room: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return affected > 0, nil
}

// AddParticipant adds a participant if the user id is not already present.
func (s *SQLiteStore) AddParticipant(ctx context.Context, roomID, userID, username string) ([]store.Participant, error) {
	return s.mutateParticipants(ctx, roomID, `
		INSERT INTO room_participants (room_id, user_id, username, joined_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (room_id, user_id) DO NOTHING
	`, roomID, userID, username, store.Now().UnixMilli())
}

// RenameParticipant updates the username of a present participant.
func (s *SQLiteStore) RenameParticipant(ctx context.Context, roomID, userID, username string) ([]store.Participant, error) {
	return s.mutateParticipants(ctx, roomID, `
		UPDATE room_participants SET username = ?
		WHERE room_id = ? AND user_id = ? AND username <> ?
	`, username, roomID, userID, username)
}

// RemoveParticipant removes a participant if present.
func (s *SQLiteStore) RemoveParticipant(ctx context.Context, roomID, userID string) ([]store.Participant, error) {
	return s.mutateParticipants(ctx, roomID, `
		DELETE FROM room_participants WHERE room_id = ? AND user_id = ?
	`, roomID, userID)
}

// mutateParticipants runs stmt inside a transaction, bumps updated_at when it changed
// anything and returns the resulting participant list.
func (s *SQLiteStore) mutateParticipants(ctx context.Context, roomID, stmt string, args ...any) ([]store.Participant, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE room_id = ?`, roomID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %q: %w", roomID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	result, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("update participants: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE rooms SET updated_at = MAX(updated_at, ?) WHERE room_id = ?`,
			store.Now().UnixMilli(), roomID,
		); err != nil {
			return nil, fmt.Errorf("touch room: %w", err)
		}
	}

	participants, err := listParticipants(ctx, tx, roomID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return participants, nil
}

func getRoom(ctx context.Context, q queryer, roomID string) (*store.Room, error) {
	query := `
		SELECT room_id, code, language, title, description, created_by, is_public, created_at, updated_at
		FROM rooms
		WHERE room_id = ?
	`
	room, err := scanRoom(q.QueryRowContext(ctx, query, roomID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %q: %w", roomID, store.ErrNotFound)
		}
		return nil, err
	}

	participants, err := listParticipants(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	room.Participants = participants
	return room, nil
}

func listParticipants(ctx context.Context, q queryer, roomID string) ([]store.Participant, error) {
	query := `
		SELECT user_id, username, joined_at
		FROM room_participants
		WHERE room_id = ?
		ORDER BY id ASC
	`
	rows, err := q.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	participants := make([]store.Participant, 0)
	for rows.Next() {
		var p store.Participant
		var joinedAt int64
		if err := rows.Scan(&p.UserID, &p.Username, &joinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.JoinedAt = fromMillis(joinedAt)
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*store.Room, error) {
	var room store.Room
	var createdAt, updatedAt int64
	err := row.Scan(
		&room.RoomID,
		&room.Code,
		&room.Language,
		&room.Title,
		&room.Description,
		&room.CreatedBy,
		&room.IsPublic,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan room: %w", err)
	}
	room.CreatedAt = fromMillis(createdAt)
	room.UpdatedAt = fromMillis(updatedAt)
	return &room, nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
