package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"meridian/models"

	"github.com/go-redis/redis/v8"
)

var ErrSessionNotFound = errors.New("session not found")

// Store persists session transcripts for the lifetime of a session.
type Store interface {
	Load(ctx context.Context, sessionID string) ([]models.ConversationMessage, error)
	Save(ctx context.Context, sessionID string, msgs []models.ConversationMessage) error
	Delete(ctx context.Context, sessionID string) error
}

// Open loads a session or starts an empty one.
func Open(ctx context.Context, s Store, sessionID string) (*Transcript, error) {
	msgs, err := s.Load(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return New(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	return FromMessages(sessionID, msgs), nil
}

type memoryEntry struct {
	msgs    []models.ConversationMessage
	expires time.Time
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{sessions: map[string]memoryEntry{}, ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]models.ConversationMessage, error) {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || (s.ttl > 0 && s.now().After(e.expires)) {
		return nil, ErrSessionNotFound
	}
	return cloneMessages(e.msgs), nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, msgs []models.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = memoryEntry{msgs: cloneMessages(msgs), expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Sweep drops expired sessions.
func (s *MemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := s.now()
	for id, e := range s.sessions {
		if now.After(e.expires) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

const sessionPrefix = "chat:session:"

// RedisStore keeps transcripts as JSON with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]models.ConversationMessage, error) {
	data, err := s.client.Get(ctx, sessionPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	var msgs []models.ConversationMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return msgs, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, msgs []models.ConversationMessage) error {
	b, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	return s.client.Set(ctx, sessionPrefix+sessionID, b, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionPrefix+sessionID).Err()
}
