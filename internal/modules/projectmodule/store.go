package projectmodule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/manimforge/manimforge/internal/modules/rendermodule/types"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no project is stored under an id.
var ErrNotFound = errors.New("project not found")

// Project is the client-side editing state kept between sessions.
type Project struct {
	ID               string             `json:"id"`
	Prompt           string             `json:"prompt,omitempty"`
	Code             string             `json:"code,omitempty"`
	Scenes           []string           `json:"scenes,omitempty"`
	VideoURL         string             `json:"videoUrl,omitempty"`
	IndividualScenes []types.SceneVideo `json:"individualScenes,omitempty"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// Store persists projects by id.
type Store interface {
	Get(ctx context.Context, id string) (*Project, error)
	Save(ctx context.Context, project *Project) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// MemoryStore keeps projects in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]Project
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string]Project)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) Save(ctx context.Context, project *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[project.ID] = *project
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(s.projects, id)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// RedisStore keeps each project as a JSON value under <prefix>project:<id>.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. A zero ttl keeps projects forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the redis key of a project.
func (s *RedisStore) Key(id string) string {
	return s.prefix + "project:" + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Project, error) {
	data, err := s.client.Get(ctx, s.Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project %s: %w", id, err)
	}

	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", id, err)
	}
	return &p, nil
}

func (s *RedisStore) Save(ctx context.Context, project *Project) error {
	data, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("failed to encode project %s: %w", project.ID, err)
	}
	if err := s.client.Set(ctx, s.Key(project.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store project %s: %w", project.ID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.Key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
