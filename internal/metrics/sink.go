// Package metrics provides fire-and-forget counter sinks for the resolution
// engine. A sink is initialized once at process start and injected into the
// resolver; it must never block or fail the resolution path.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	CounterResolutionAttempted = "resolution_attempted"
	CounterCacheHit            = "cache_hit"
	CounterCacheMiss           = "cache_miss"
	CounterReferenceResolved   = "reference_resolved"
	CounterReferenceMissing    = "reference_missing"
	CounterCycleDetected       = "cycle_detected"
)

// RedisSink increments counters in Redis from a single background loop fed
// by a bounded channel. When the channel is full, events are dropped rather
// than blocking resolution.
type RedisSink struct {
	client *redis.Client
	events chan string
	done   chan struct{}
}

func NewRedisSink(client *redis.Client) *RedisSink {
	s := &RedisSink{
		client: client,
		events: make(chan string, 1024),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *RedisSink) loop() {
	for counter := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := s.client.Incr(ctx, "metrics:resolution:"+counter).Err(); err != nil {
			slog.Debug("metrics increment failed", "counter", counter, "error", err)
		}
		cancel()
	}
	close(s.done)
}

// Close stops the background loop after draining queued events.
func (s *RedisSink) Close() {
	close(s.events)
	<-s.done
}

func (s *RedisSink) record(counter string) {
	select {
	case s.events <- counter:
	default:
	}
}

func (s *RedisSink) ResolutionAttempted() { s.record(CounterResolutionAttempted) }
func (s *RedisSink) CacheHit()            { s.record(CounterCacheHit) }
func (s *RedisSink) CacheMiss()           { s.record(CounterCacheMiss) }
func (s *RedisSink) ReferenceResolved()   { s.record(CounterReferenceResolved) }
func (s *RedisSink) ReferenceMissing()    { s.record(CounterReferenceMissing) }
func (s *RedisSink) CycleDetected()       { s.record(CounterCycleDetected) }
