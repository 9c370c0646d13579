package bus

import (
	"context"
	"sync"

	"github.com/yungbote/studyforge-backend/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, msg realtime.Message) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error
	Close() error
}

// memoryBus delivers in-process. Used when no redis is configured.
type memoryBus struct {
	mu   sync.RWMutex
	subs []func(realtime.Message)
}

func NewMemoryBus() Bus {
	return &memoryBus{}
}

func (b *memoryBus) Publish(_ context.Context, msg realtime.Message) error {
	b.mu.RLock()
	subs := append([]func(realtime.Message){}, b.subs...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(msg)
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error {
	if onMsg == nil {
		return nil
	}
	b.mu.Lock()
	b.subs = append(b.subs, onMsg)
	b.mu.Unlock()
	return nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	b.subs = nil
	b.mu.Unlock()
	return nil
}
