package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingPusher struct {
	mu      sync.Mutex
	release chan struct{}
	started chan struct{}
	pushed  []int
	fail    bool
}

func (p *blockingPusher) Push(_ context.Context, snapshot Snapshot) error {
	p.started <- struct{}{}
	<-p.release

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, len(snapshot.Items))
	if p.fail {
		return errors.New("push failed")
	}
	return nil
}

func snapshotWith(userID, storeID uuid.UUID, n int) Snapshot {
	return Snapshot{
		Shopper: Shopper{UserID: userID},
		StoreID: storeID,
		Items:   make([]Item, n),
	}
}

func TestSyncQueueCoalescesToLatest(t *testing.T) {
	pusher := &blockingPusher{release: make(chan struct{}), started: make(chan struct{}, 4)}
	queue := NewSyncQueue(context.Background(), pusher, nil)
	userID, storeID := uuid.New(), uuid.New()

	queue.Schedule(snapshotWith(userID, storeID, 1))
	<-pusher.started

	queue.Schedule(snapshotWith(userID, storeID, 2))
	queue.Schedule(snapshotWith(userID, storeID, 3))
	queue.Schedule(snapshotWith(userID, storeID, 4))

	close(pusher.release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, queue.Close(ctx))

	assert.Equal(t, []int{1, 4}, pusher.pushed)
}

func TestSyncQueueRunsKeysIndependently(t *testing.T) {
	pusher := &blockingPusher{release: make(chan struct{}), started: make(chan struct{}, 4)}
	queue := NewSyncQueue(context.Background(), pusher, nil)
	userID := uuid.New()

	queue.Schedule(snapshotWith(userID, uuid.New(), 1))
	queue.Schedule(snapshotWith(userID, uuid.New(), 2))

	<-pusher.started
	<-pusher.started
	close(pusher.release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, queue.Close(ctx))

	assert.ElementsMatch(t, []int{1, 2}, pusher.pushed)
}

func TestSyncQueueContinuesAfterFailure(t *testing.T) {
	pusher := &blockingPusher{release: make(chan struct{}), started: make(chan struct{}, 4), fail: true}
	queue := NewSyncQueue(context.Background(), pusher, nil)
	userID, storeID := uuid.New(), uuid.New()

	queue.Schedule(snapshotWith(userID, storeID, 1))
	<-pusher.started
	queue.Schedule(snapshotWith(userID, storeID, 2))
	close(pusher.release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, queue.Close(ctx))

	assert.Equal(t, []int{1, 2}, pusher.pushed)
}

func TestSyncQueueIgnoresScheduleAfterClose(t *testing.T) {
	pusher := &blockingPusher{release: make(chan struct{}), started: make(chan struct{}, 1)}
	queue := NewSyncQueue(context.Background(), pusher, nil)
	require.NoError(t, queue.Close(context.Background()))

	queue.Schedule(snapshotWith(uuid.New(), uuid.New(), 1))
	assert.Empty(t, pusher.pushed)
}
