package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeenStore recuerda ids de mensaje de la fuente para que un nodo DOM
// re-emitido no se persista dos veces.
type SeenStore interface {
	// MarkIfNew registra el id y devuelve true si no se había visto.
	MarkIfNew(ctx context.Context, sourceID string) (bool, error)
}

const seenTTL = 24 * time.Hour

type memorySeenStore struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func NewMemorySeenStore() SeenStore {
	return &memorySeenStore{
		items: make(map[string]time.Time),
	}
}

func (s *memorySeenStore) MarkIfNew(_ context.Context, sourceID string) (bool, error) {
	if strings.TrimSpace(sourceID) == "" {
		return true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if exp, ok := s.items[sourceID]; ok && now.Before(exp) {
		return false, nil
	}
	for id, exp := range s.items {
		if now.After(exp) {
			delete(s.items, id)
		}
	}
	s.items[sourceID] = now.Add(seenTTL)
	return true, nil
}

type redisSeenStore struct {
	client *redis.Client
	prefix string
}

func NewRedisSeenStore(client *redis.Client) SeenStore {
	if client == nil {
		return nil
	}
	return &redisSeenStore{
		client: client,
		prefix: "ingest:seen:",
	}
}

func (s *redisSeenStore) MarkIfNew(ctx context.Context, sourceID string) (bool, error) {
	if strings.TrimSpace(sourceID) == "" {
		return true, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return s.client.SetNX(ctx, s.prefix+sourceID, 1, seenTTL).Result()
}
