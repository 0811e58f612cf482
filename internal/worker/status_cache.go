package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ForeverInLaw/nikitabotv2/internal/kafka"
	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
	"github.com/ForeverInLaw/nikitabotv2/internal/redisx"
)

// Cache is the slice of redis the worker needs.
type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}

type RedisCache struct{ C *redis.Client }

func (r RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.C.Set(ctx, key, value, ttl).Err()
}

func (r RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	return redisx.Exists(ctx, r.C, key)
}

// StatusCacheService keeps the redis order-status cache in sync with
// order.status.changed events, deduplicating by event id.
type StatusCacheService struct {
	Cache       Cache
	ServiceName string
	Logger      zerolog.Logger
}

// HandleStatusChanged is mounted as the consumer handler.
func (s *StatusCacheService) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderStatusChanged {
		return nil // ignore
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, _ := s.Cache.Exists(ctx, dkey); seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		return err
	}

	body, _ := json.Marshal(map[string]any{"status": p.NewStatus})
	skey := fmt.Sprintf(redisx.KeyOrderStatus, p.OrderID)
	if err := s.Cache.Set(ctx, skey, string(body), redisx.TTLStatusCache); err != nil {
		return err
	}
	_ = s.Cache.Set(ctx, dkey, "1", redisx.TTLDedup)

	s.Logger.Debug().
		Str("order_id", p.OrderID).
		Str("status", string(p.NewStatus)).
		Msg("status cache refreshed")
	return nil
}
