package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps project snapshots as JSON values under a key prefix.
// Snapshots have no TTL; projects live until deleted.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// redisProject is the stored value. The snapshot payload travels inline
// with the metadata.
type redisProject struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TemplateID string    `json:"template_id"`
	Data       []byte    `json:"data"`
	SavedAt    time.Time `json:"saved_at"`
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "project:",
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Save(ctx context.Context, p Project) error {
	if p.SavedAt.IsZero() {
		p.SavedAt = time.Now().UTC()
	}
	value, err := json.Marshal(redisProject{
		ID:         p.ID,
		Name:       p.Name,
		TemplateID: p.TemplateID,
		Data:       p.Data,
		SavedAt:    p.SavedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}
	if err := s.client.Set(ctx, s.key(p.ID), value, 0).Err(); err != nil {
		return fmt.Errorf("save project %s: %w", p.ID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (Project, error) {
	value, err := s.client.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("load project %s: %w", id, err)
	}

	var rp redisProject
	if err := json.Unmarshal([]byte(value), &rp); err != nil {
		return Project{}, fmt.Errorf("unmarshal project %s: %w", id, err)
	}
	return Project{
		ID:         rp.ID,
		Name:       rp.Name,
		TemplateID: rp.TemplateID,
		Data:       rp.Data,
		SavedAt:    rp.SavedAt,
	}, nil
}

func (s *RedisStore) List(ctx context.Context) ([]ProjectInfo, error) {
	var infos []ProjectInfo
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		value, err := s.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		var rp redisProject
		if err := json.Unmarshal([]byte(value), &rp); err != nil {
			return nil, fmt.Errorf("unmarshal project %s: %w", iter.Val(), err)
		}
		infos = append(infos, ProjectInfo{
			ID:         rp.ID,
			Name:       rp.Name,
			TemplateID: rp.TemplateID,
			SavedAt:    rp.SavedAt,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan projects: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].SavedAt.Equal(infos[j].SavedAt) {
			return infos[i].SavedAt.After(infos[j].SavedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
