package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const DefaultBuffer = 32

type subscriber struct {
	ch chan Event
}

// Broker is an in-process pub/sub keyed by account id. A slow subscriber
// loses events instead of blocking the publisher.
type Broker struct {
	buffer int
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func NewBroker(logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.L()
	}
	return &Broker{buffer: DefaultBuffer, logger: logger, subs: map[string]map[*subscriber]struct{}{}}
}

// Subscribe returns a channel closed once ctx is done.
func (b *Broker) Subscribe(ctx context.Context, accountID string) <-chan Event {
	s := &subscriber{ch: make(chan Event, b.buffer)}

	b.mu.Lock()
	if b.subs[accountID] == nil {
		b.subs[accountID] = map[*subscriber]struct{}{}
	}
	b.subs[accountID][s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[accountID], s)
		if len(b.subs[accountID]) == 0 {
			delete(b.subs, accountID)
		}
		close(s.ch)
		b.mu.Unlock()
	}()
	return s.ch
}

func (b *Broker) Subscribers(accountID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[accountID])
}

func (b *Broker) Publish(_ context.Context, events ...Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range events {
		for s := range b.subs[e.AccountID] {
			select {
			case s.ch <- e:
			default:
				b.logger.Warn("dropping event for slow subscriber",
					zap.String("account_id", e.AccountID),
					zap.String("kind", string(e.Kind)))
			}
		}
	}
	return nil
}
