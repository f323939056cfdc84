package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"snackbox/backend/services/vending-service/internal/models"
)

const (
	keyPrefix = "vending:active:"
	liveKey   = "vending:live"
	minTTL    = time.Second
)

// Client is the subset of redis commands the store uses; *redis.Client satisfies it.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ActiveSession stored in redis for quick access by kiosk displays.
type ActiveSession struct {
	SessionID   uuid.UUID       `json:"session_id"`
	UserID      uuid.UUID       `json:"user_id"`
	StartTime   time.Time       `json:"start_time"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Scans       int             `json:"scans"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
}

// Store mirrors open sessions into redis, keyed by user, plus the one live session.
type Store struct {
	client Client
	ttl    time.Duration
}

// NewStore returns redis-backed store. ttl applies to entries without a known deadline.
func NewStore(client Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(userID uuid.UUID) string {
	return fmt.Sprintf("%s%s", keyPrefix, userID)
}

// Save caches session under its user and as the live session.
func (s *Store) Save(ctx context.Context, session ActiveSession, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(session.UserID), data, ttl).Err(); err != nil {
		return err
	}
	return s.client.Set(ctx, liveKey, data, ttl).Err()
}

// Get returns the cached open session of user, or redis.Nil.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*ActiveSession, error) {
	return s.load(ctx, s.key(userID))
}

// Live returns the session that is currently live on the kiosk, or redis.Nil.
func (s *Store) Live(ctx context.Context) (*ActiveSession, error) {
	return s.load(ctx, liveKey)
}

// Delete removes the user's cached session and clears the live entry if it points at
// sessionID.
func (s *Store) Delete(ctx context.Context, userID, sessionID uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return err
	}
	live, err := s.Live(ctx)
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if live.SessionID != sessionID {
		return nil
	}
	return s.client.Del(ctx, liveKey).Err()
}

// OnSessionEvent keeps the cache in step with the coordinator.
func (s *Store) OnSessionEvent(ctx context.Context, event models.SessionEvent) error {
	switch event.Type {
	case models.SessionOpened, models.SessionExtended:
		ttl := s.ttl
		if event.Deadline != nil {
			ttl = event.Deadline.Sub(event.At)
			if ttl < minTTL {
				ttl = minTTL
			}
		}
		return s.Save(ctx, fromSession(event.Session, event.Deadline), ttl)
	case models.SessionClosed:
		return s.Delete(ctx, event.Session.UserID, event.Session.ID)
	}
	return nil
}

func (s *Store) load(ctx context.Context, key string) (*ActiveSession, error) {
	result, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var session ActiveSession
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func fromSession(session models.Session, deadline *time.Time) ActiveSession {
	return ActiveSession{
		SessionID:   session.ID,
		UserID:      session.UserID,
		StartTime:   session.StartTime,
		TotalAmount: session.TotalAmount,
		Scans:       len(session.Scans),
		Deadline:    deadline,
	}
}
