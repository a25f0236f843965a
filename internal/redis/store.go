package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrInstanceNotFound = errors.New("widget instance not found")

// Instance is the persisted part of a widget: its id and the configuration
// it was created with. Rendering state is rebuilt on every request.
type Instance struct {
	ID        string          `json:"id"`
	Config    json.RawMessage `json:"config"`
	CreatedAt time.Time       `json:"created_at"`
}

// InstanceStore keeps widget instances in Redis with a sliding TTL.
type InstanceStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewInstanceStore(client *redis.Client, ttl time.Duration) *InstanceStore {
	return &InstanceStore{client: client, ttl: ttl}
}

func instanceKey(id string) string {
	return "widget:instance:" + id
}

func (s *InstanceStore) Save(ctx context.Context, inst Instance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("marshal instance: %w", err)
	}
	if err := s.client.Set(ctx, instanceKey(inst.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save instance: %w", err)
	}
	return nil
}

// Get loads an instance and refreshes its TTL.
func (s *InstanceStore) Get(ctx context.Context, id string) (*Instance, error) {
	data, err := s.client.GetEx(ctx, instanceKey(id), s.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("load instance: %w", err)
	}

	var inst Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("decode instance: %w", err)
	}
	return &inst, nil
}

func (s *InstanceStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, instanceKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if n == 0 {
		return ErrInstanceNotFound
	}
	return nil
}
