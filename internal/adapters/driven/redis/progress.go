package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/mnemo/internal/core/domain"
	"github.com/custodia-labs/mnemo/internal/core/ports/driven"
	"github.com/custodia-labs/mnemo/internal/logger"
)

// DefaultChannel is the pub/sub channel progress events are published on.
const DefaultChannel = "mnemo:progress"

// DefaultBuffer bounds the number of queued events.
const DefaultBuffer = 256

const publishTimeout = 2 * time.Second

var _ driven.ProgressSink = (*ProgressSink)(nil)

var log = logger.Named("redis")

// ProgressSink publishes events as JSON on a Redis channel from a
// background goroutine. Publish never blocks: when the queue is full the
// event is dropped. Events published after Close are dropped too.
type ProgressSink struct {
	client  goredis.UniversalClient
	channel string
	events  chan domain.ProgressEvent
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewProgressSink starts the publisher goroutine. Call Close to stop it.
func NewProgressSink(client goredis.UniversalClient, channel string) *ProgressSink {
	if channel == "" {
		channel = DefaultChannel
	}
	s := &ProgressSink{
		client:  client,
		channel: channel,
		events:  make(chan domain.ProgressEvent, DefaultBuffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Publish queues event for delivery.
func (s *ProgressSink) Publish(event domain.ProgressEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		log.Debug("progress sink closed, dropping %s event", event.Kind)
		return
	}
	select {
	case s.events <- event:
	default:
		log.Debug("progress queue full, dropping %s event", event.Kind)
	}
}

// Close drains queued events and stops the publisher. It is safe to call
// more than once.
func (s *ProgressSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *ProgressSink) run() {
	defer close(s.done)
	for event := range s.events {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
			log.Warn("publish progress: %v", err)
		}
		cancel()
	}
}

// Subscribe streams decoded events from channel until ctx is done.
func Subscribe(ctx context.Context, client goredis.UniversalClient, channel string) <-chan domain.ProgressEvent {
	if channel == "" {
		channel = DefaultChannel
	}
	out := make(chan domain.ProgressEvent)
	sub := client.Subscribe(ctx, channel)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event domain.ProgressEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
