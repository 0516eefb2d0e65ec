package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vovakirdan/codecollab-server/internal/store"
)

const maxTxRetries = 10

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore implements store.RoomStore on top of Redis.
// Each room is a JSON document; a sorted set scored by updatedAt indexes public rooms.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ store.RoomStore = (*RedisStore)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}

	return NewWithClient(client, opts.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "codecollab:"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) roomKey(roomID string) string {
	return s.keyPrefix + "room:" + roomID
}

func (s *RedisStore) publicIndexKey() string {
	return s.keyPrefix + "rooms:public"
}

type participantDoc struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	JoinedAt int64  `json:"joinedAt"`
}

type roomDoc struct {
	RoomID       string           `json:"roomId"`
	Code         string           `json:"code"`
	Language     string           `json:"language"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	CreatedBy    string           `json:"createdBy"`
	IsPublic     bool             `json:"isPublic"`
	Participants []participantDoc `json:"participants"`
	CreatedAt    int64            `json:"createdAt"`
	UpdatedAt    int64            `json:"updatedAt"`
}

func (d *roomDoc) toRoom() *store.Room {
	room := &store.Room{
		RoomID:       d.RoomID,
		Code:         d.Code,
		Language:     d.Language,
		Title:        d.Title,
		Description:  d.Description,
		CreatedBy:    d.CreatedBy,
		IsPublic:     d.IsPublic,
		Participants: make([]store.Participant, 0, len(d.Participants)),
		CreatedAt:    time.UnixMilli(d.CreatedAt).UTC(),
		UpdatedAt:    time.UnixMilli(d.UpdatedAt).UTC(),
	}
	for _, p := range d.Participants {
		room.Participants = append(room.Participants, store.Participant{
			UserID:   p.UserID,
			Username: p.Username,
			JoinedAt: time.UnixMilli(p.JoinedAt).UTC(),
		})
	}
	return room
}

// touch bumps UpdatedAt without letting it go backwards.
func (d *roomDoc) touch() {
	if now := store.Now().UnixMilli(); now > d.UpdatedAt {
		d.UpdatedAt = now
	}
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// CreateRoom stores a new room document unless the id is taken.
func (s *RedisStore) CreateRoom(ctx context.Context, params store.CreateRoomParams) (*store.Room, error) {
	params = params.WithDefaults()
	now := store.Now().UnixMilli()

	doc := &roomDoc{
		RoomID:       params.RoomID,
		Code:         store.DefaultCode,
		Language:     params.Language,
		Title:        params.Title,
		Description:  params.Description,
		CreatedBy:    params.CreatedBy,
		IsPublic:     true,
		Participants: []participantDoc{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("redis: marshal room: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.roomKey(params.RoomID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: create room %s: %w", params.RoomID, err)
	}
	if !created {
		return nil, fmt.Errorf("redis: create room %s: %w", params.RoomID, store.ErrDuplicateRoom)
	}

	if err := s.client.ZAdd(ctx, s.publicIndexKey(), redis.Z{Score: float64(now), Member: params.RoomID}).Err(); err != nil {
		return nil, fmt.Errorf("redis: index room %s: %w", params.RoomID, err)
	}
	return doc.toRoom(), nil
}

// GetRoom loads a room document.
func (s *RedisStore) GetRoom(ctx context.Context, roomID string) (*store.Room, error) {
	doc, err := s.load(ctx, s.client, roomID)
	if err != nil {
		return nil, err
	}
	return doc.toRoom(), nil
}

// UpdateRoom applies the provided fields.
func (s *RedisStore) UpdateRoom(ctx context.Context, roomID string, update store.RoomUpdate) (*store.Room, error) {
	doc, err := s.mutate(ctx, roomID, func(d *roomDoc) bool {
		if update.Code != nil {
			d.Code = *update.Code
		}
		if update.Language != nil {
			d.Language = *update.Language
		}
		if update.Title != nil {
			d.Title = *update.Title
		}
		if update.Description != nil {
			d.Description = *update.Description
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return doc.toRoom(), nil
}

// ListPublicRooms pages through the public index, newest first.
func (s *RedisStore) ListPublicRooms(ctx context.Context, params store.ListParams) ([]*store.Room, int, error) {
	search := strings.ToLower(strings.TrimSpace(params.Search))

	if search == "" {
		total, err := s.client.ZCard(ctx, s.publicIndexKey()).Result()
		if err != nil {
			return nil, 0, fmt.Errorf("redis: count rooms: %w", err)
		}
		start := int64(params.Offset())
		stop := int64(-1)
		if params.Limit > 0 {
			stop = start + int64(params.Limit) - 1
		}
		ids, err := s.client.ZRevRange(ctx, s.publicIndexKey(), start, stop).Result()
		if err != nil {
			return nil, 0, fmt.Errorf("redis: range rooms: %w", err)
		}
		docs, err := s.loadMany(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		return toRooms(docs), int(total), nil
	}

	ids, err := s.client.ZRevRange(ctx, s.publicIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis: range rooms: %w", err)
	}
	docs, err := s.loadMany(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	matched := docs[:0]
	for _, d := range docs {
		if strings.Contains(strings.ToLower(d.Title), search) || strings.Contains(strings.ToLower(d.Description), search) {
			matched = append(matched, d)
		}
	}

	total := len(matched)
	start := min(params.Offset(), total)
	end := total
	if params.Limit > 0 {
		end = min(start+params.Limit, total)
	}
	return toRooms(matched[start:end]), total, nil
}

// DeleteRoom removes the document and its index entry.
func (s *RedisStore) DeleteRoom(ctx context.Context, roomID string) (bool, error) {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.roomKey(roomID))
		pipe.ZRem(ctx, s.publicIndexKey(), roomID)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis: delete room %s: %w", roomID, err)
	}
	return del.Val() > 0, nil
}

// AddParticipant appends a participant unless present.
func (s *RedisStore) AddParticipant(ctx context.Context, roomID, userID, username string) ([]store.Participant, error) {
	doc, err := s.mutate(ctx, roomID, func(d *roomDoc) bool {
		for _, p := range d.Participants {
			if p.UserID == userID {
				return false
			}
		}
		d.Participants = append(d.Participants, participantDoc{
			UserID:   userID,
			Username: username,
			JoinedAt: store.Now().UnixMilli(),
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return doc.toRoom().Participants, nil
}

// RenameParticipant updates the username of a present participant.
func (s *RedisStore) RenameParticipant(ctx context.Context, roomID, userID, username string) ([]store.Participant, error) {
	doc, err := s.mutate(ctx, roomID, func(d *roomDoc) bool {
		for i, p := range d.Participants {
			if p.UserID == userID && p.Username != username {
				d.Participants[i].Username = username
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return doc.toRoom().Participants, nil
}

// RemoveParticipant drops a participant if present.
func (s *RedisStore) RemoveParticipant(ctx context.Context, roomID, userID string) ([]store.Participant, error) {
	doc, err := s.mutate(ctx, roomID, func(d *roomDoc) bool {
		kept := d.Participants[:0]
		for _, p := range d.Participants {
			if p.UserID != userID {
				kept = append(kept, p)
			}
		}
		changed := len(kept) != len(d.Participants)
		d.Participants = kept
		return changed
	})
	if err != nil {
		return nil, err
	}
	return doc.toRoom().Participants, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// mutate runs fn against the current document inside an optimistic WATCH transaction.
// fn reports whether it changed anything; unchanged documents are not written back.
func (s *RedisStore) mutate(ctx context.Context, roomID string, fn func(*roomDoc) bool) (*roomDoc, error) {
	key := s.roomKey(roomID)
	var result *roomDoc

	txf := func(tx *redis.Tx) error {
		doc, err := s.load(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if !fn(doc) {
			result = doc
			return nil
		}
		doc.touch()

		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("redis: marshal room: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if doc.IsPublic {
				pipe.ZAdd(ctx, s.publicIndexKey(), redis.Z{Score: float64(doc.UpdatedAt), Member: roomID})
			}
			return nil
		})
		if err == nil {
			result = doc
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("redis: update room %s: too much contention", roomID)
}

func (s *RedisStore) load(ctx context.Context, c getter, roomID string) (*roomDoc, error) {
	data, err := c.Get(ctx, s.roomKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis: room %s: %w", roomID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("redis: get room %s: %w", roomID, err)
	}
	var doc roomDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("redis: decode room %s: %w", roomID, err)
	}
	return &doc, nil
}

func (s *RedisStore) loadMany(ctx context.Context, ids []string) ([]*roomDoc, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.roomKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load rooms: %w", err)
	}

	docs := make([]*roomDoc, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a document; skip it.
			continue
		}
		var doc roomDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("redis: decode room %s: %w", ids[i], err)
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

func toRooms(docs []*roomDoc) []*store.Room {
	rooms := make([]*store.Room, 0, len(docs))
	for _, d := range docs {
		rooms = append(rooms, d.toRoom())
	}
	return rooms
}
