package service

import (
	"context"
	"sync"

	"catalog-service/config"
	"catalog-service/internal/models"
)

// Lock names used for graph mutations.
const (
	lockBundleGraph     = "bundle-graph"
	lockCollectionGraph = "collection-graph"
)

// EventSink receives catalog facts after the write that produced them has
// committed.
type EventSink interface {
	PublishProductCreated(ctx context.Context, event *models.ProductCreatedEvent) error
	PublishPriceChanged(ctx context.Context, event *models.PriceChangedEvent) error
}

// Locker serialises graph mutations across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LimitsProvider returns the graph limits in effect for the current call.
type LimitsProvider interface {
	Limits() config.CatalogConfig
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) PublishProductCreated(context.Context, *models.ProductCreatedEvent) error { return nil }
func (NopSink) PublishPriceChanged(context.Context, *models.PriceChangedEvent) error     { return nil }

// LocalLocker is an in-process Locker, used when Redis is not configured.
// Each key is a one-slot semaphore so a waiting Lock can give up on ctx.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.locks[key]
	if !ok {
		sem = make(chan struct{}, 1)
		l.locks[key] = sem
	}
	l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() { once.Do(func() { <-sem }) }, nil
}
