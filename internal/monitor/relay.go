package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jorabeknazarmatov/test-platform/internal/config"
	"github.com/jorabeknazarmatov/test-platform/internal/session"
)

// Publisher sends a payload to a Pub/Sub channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher publishes through Redis Pub/Sub.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.rdb.Publish(ctx, channel, payload).Err()
}

// Relay mirrors controller snapshots to the monitor channels so a proctor can
// follow the attempt live. Each event goes to the per-session channel and to
// the shared one.
type Relay struct {
	pub Publisher
	log zerolog.Logger
	now func() time.Time
}

func NewRelay(pub Publisher, log zerolog.Logger) *Relay {
	return &Relay{
		pub: pub,
		log: log.With().Str("component", "monitor_relay").Logger(),
		now: time.Now,
	}
}

// Start consumes updates until ctx is cancelled or the channel is closed.
// Publish failures are logged and skipped; the next snapshot carries the full
// state again.
func (r *Relay) Start(ctx context.Context, updates <-chan session.Snapshot) {
	r.log.Info().Msg("Monitor relay started")
	defer r.log.Info().Msg("Monitor relay stopped")

	var last *Event
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			ev, publish := deriveEvent(last, snap)
			if !publish || (last != nil && ev.same(*last)) {
				continue
			}
			ev.Timestamp = r.now().UnixMilli()
			if err := r.publish(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.log.Warn().Err(err).Int("session_id", ev.SessionID).Str("type", ev.Type).Msg("Failed to publish monitor event")
			}
			last = &ev
		}
	}
}

func (r *Relay) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	for _, channel := range []string{
		config.CacheKey.SessionMonitorChannel(ev.SessionID),
		config.CacheKey.MonitorChannel(),
	} {
		if err := r.pub.Publish(ctx, channel, payload); err != nil {
			return fmt.Errorf("publish to %s: %w", channel, err)
		}
	}
	return nil
}
