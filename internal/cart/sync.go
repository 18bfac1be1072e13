package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/storefrontapp/storefront/internal/logging"
	"github.com/storefrontapp/storefront/internal/observability"
)

const defaultSyncTimeout = 10 * time.Second

// Pusher writes a store cart snapshot to the server-side cart.
type Pusher interface {
	Push(ctx context.Context, snapshot Snapshot) error
}

type syncKey struct {
	userID  uuid.UUID
	storeID uuid.UUID
}

type syncSlot struct {
	running bool
	pending *Snapshot
}

// SyncQueue runs at most one push per shopper and store at a time. While a
// push is running, later snapshots collapse into a single pending one and
// only the newest is pushed next.
type SyncQueue struct {
	pusher  Pusher
	logger  *slog.Logger
	base    context.Context
	timeout time.Duration

	mu     sync.Mutex
	slots  map[syncKey]*syncSlot
	wg     sync.WaitGroup
	closed bool
}

func NewSyncQueue(base context.Context, pusher Pusher, logger *slog.Logger) *SyncQueue {
	if base == nil {
		base = context.Background()
	}
	return &SyncQueue{
		pusher:  pusher,
		logger:  logger,
		base:    context.WithoutCancel(base),
		timeout: defaultSyncTimeout,
		slots:   map[syncKey]*syncSlot{},
	}
}

func (q *SyncQueue) Schedule(snapshot Snapshot) {
	key := syncKey{userID: snapshot.Shopper.UserID, storeID: snapshot.StoreID}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	slot, ok := q.slots[key]
	if !ok {
		slot = &syncSlot{}
		q.slots[key] = slot
	}
	if slot.running {
		slot.pending = &snapshot
		return
	}

	slot.running = true
	q.wg.Add(1)
	go q.run(key, snapshot)
}

func (q *SyncQueue) run(key syncKey, snapshot Snapshot) {
	defer q.wg.Done()

	for {
		q.push(snapshot)

		q.mu.Lock()
		slot := q.slots[key]
		if slot.pending == nil {
			delete(q.slots, key)
			q.mu.Unlock()
			return
		}
		snapshot = *slot.pending
		slot.pending = nil
		q.mu.Unlock()
	}
}

func (q *SyncQueue) push(snapshot Snapshot) {
	ctx, cancel := context.WithTimeout(q.base, q.timeout)
	defer cancel()

	span := sentry.StartSpan(
		ctx,
		"service.cart.sync",
		sentry.WithOpName("service.cart"),
		sentry.WithDescription("Sync"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	meter := observability.MeterFromContext(ctx)
	logger := logging.FromContext(ctx, q.logger).With(
		"store_id", snapshot.StoreID.String(),
		"user_id", snapshot.Shopper.UserID.String(),
	)

	if err := q.pusher.Push(ctx, snapshot); err != nil {
		span.Status = sentry.SpanStatusInternalError
		meter.Count("cart.sync.failed", 1, sentry.WithAttributes(
			attribute.String("store", snapshot.StoreSlug),
		))
		logger.Warn("cart sync failed", "error", err)
		return
	}
	meter.Count("cart.sync.succeeded", 1)
}

// Close stops accepting snapshots and waits for in-flight pushes.
func (q *SyncQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
