package importjob

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound covers unknown ids and jobs already discarded by the
// retention window; the two are indistinguishable by design.
var ErrNotFound = errors.New("import job not found")

// Store persists job snapshots so status polling works across replicas and
// survives a process restart. The store's TTL replaces any in-process
// cleanup timer.
type Store interface {
	Save(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
}

// RedisStore keeps jobs as JSON under "importjob:<id>" with the configured
// retention TTL. Every save refreshes the TTL so a job never expires while
// its worker is still writing to it.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "importjob:"
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Save(ctx context.Context, j *Job) error {
	j.UpdatedAt = time.Now().UTC()
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(j.ID), b, s.ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	b, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// MemoryStore is a process-local store for tests and the dev entrypoint.
// Not suitable for a horizontally scaled deployment.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Save(ctx context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.UpdatedAt = time.Now().UTC()
	cp := *j
	cp.Errors = append([]ItemError(nil), j.Errors...)
	s.jobs[j.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	cp.Errors = append([]ItemError(nil), j.Errors...)
	return &cp, nil
}
