package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RegistryMarker mirrors live join codes into Redis so operators can see
// which games are running. Purely best-effort: session routing stays
// in-process, a lost marker never affects gameplay.
type RegistryMarker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRegistryMarker(client *redis.Client, ttl time.Duration) *RegistryMarker {
	return &RegistryMarker{client: client, ttl: ttl}
}

func (m *RegistryMarker) Mark(code string) {
	_ = m.client.Set(context.Background(), m.key(code), "1", m.ttl).Err()
}

func (m *RegistryMarker) Clear(code string) {
	_ = m.client.Del(context.Background(), m.key(code)).Err()
}

func (m *RegistryMarker) key(code string) string {
	return "game:session:" + code
}
