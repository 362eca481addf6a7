package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingMetrics struct {
	mu   sync.Mutex
	dead map[string]int
}

func (m *countingMetrics) EnqueueFailed()             {}
func (m *countingMetrics) EvaluationCompleted(string) {}
func (m *countingMetrics) EvaluationRetried(string)   {}
func (m *countingMetrics) CacheLookup(string)         {}

func (m *countingMetrics) JobDeadLettered(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dead == nil {
		m.dead = map[string]int{}
	}
	m.dead[reason]++
}

type fixture struct {
	queue   *RedisQueue
	mr      *miniredis.Miniredis
	clock   *testClock
	metrics *countingMetrics
}

func newFixture(t *testing.T, opts Options) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	clock := &testClock{now: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)}
	metrics := &countingMetrics{}
	opts.Now = clock.Now
	opts.Metrics = metrics
	return fixture{queue: NewRedisQueue(client, opts), mr: mr, clock: clock, metrics: metrics}
}

func (f fixture) depth(t *testing.T) Depth {
	t.Helper()
	d, err := f.queue.Depth(context.Background())
	require.NoError(t, err)
	return d
}

const reserveWait = 100 * time.Millisecond

func TestEnqueueReserveAck(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	txID := uuid.New()
	require.NoError(t, f.queue.Enqueue(ctx, domain.NewEvaluationJob(txID, f.clock.Now())))
	assert.Equal(t, Depth{Ready: 1}, f.depth(t))

	d, err := f.queue.Reserve(ctx, reserveWait)
	require.NoError(t, err)
	got, err := d.Job.TransactionID()
	require.NoError(t, err)
	assert.Equal(t, txID, got)
	assert.Equal(t, domain.TaskEvaluateTransaction, d.Job.Task)
	assert.Equal(t, Depth{Processing: 1}, f.depth(t))

	require.NoError(t, f.queue.Ack(ctx, d))
	assert.Equal(t, Depth{}, f.depth(t))
	assert.False(t, f.mr.Exists("risk_queue:leases"))
}

func TestReserveEmpty(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.queue.Reserve(context.Background(), reserveWait)
	assert.ErrorIs(t, err, domain.ErrQueueEmpty)
}

func TestRetrySchedulesWithDelay(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.queue.Enqueue(ctx, domain.NewEvaluationJob(uuid.New(), f.clock.Now())))
	d, err := f.queue.Reserve(ctx, reserveWait)
	require.NoError(t, err)

	require.NoError(t, f.queue.Retry(ctx, d, 2*time.Second, "store unavailable"))
	assert.Equal(t, Depth{Delayed: 1}, f.depth(t))

	f.clock.Advance(time.Second)
	require.NoError(t, f.queue.Maintain(ctx))
	assert.Equal(t, Depth{Delayed: 1}, f.depth(t))

	f.clock.Advance(time.Second)
	again, err := f.queue.Reserve(ctx, reserveWait)
	require.NoError(t, err)
	assert.Equal(t, d.Job.ID, again.Job.ID)
	assert.Equal(t, 1, again.Job.Attempt)
	assert.Equal(t, "store unavailable", again.Job.LastError)
	assert.Equal(t, Depth{Processing: 1}, f.depth(t))
}

func TestEnqueueWithFutureETAIsDelayed(t *testing.T) {
	f := newFixture(t, Options{})
	job := domain.NewEvaluationJob(uuid.New(), f.clock.Now())
	eta := f.clock.Now().Add(time.Minute)
	job.ETA = &eta
	require.NoError(t, f.queue.Enqueue(context.Background(), job))
	assert.Equal(t, Depth{Delayed: 1}, f.depth(t))
}

func TestExpiredLeaseIsRedelivered(t *testing.T) {
	f := newFixture(t, Options{Visibility: 30 * time.Second})
	ctx := context.Background()
	require.NoError(t, f.queue.Enqueue(ctx, domain.NewEvaluationJob(uuid.New(), f.clock.Now())))
	first, err := f.queue.Reserve(ctx, reserveWait)
	require.NoError(t, err)

	f.clock.Advance(31 * time.Second)
	second, err := f.queue.Reserve(ctx, reserveWait)
	require.NoError(t, err)
	assert.Equal(t, first.Job.ID, second.Job.ID)
	assert.Equal(t, 1, second.Job.Redeliveries)
	assert.Equal(t, Depth{Processing: 1}, f.depth(t))

	// the stale delivery no longer matches anything
	require.NoError(t, f.queue.Ack(ctx, first))
	assert.Equal(t, Depth{Processing: 1}, f.depth(t))
	require.NoError(t, f.queue.Ack(ctx, second))
	assert.Equal(t, Depth{}, f.depth(t))
}

func TestRedeliveryLimitDeadLetters(t *testing.T) {
	f := newFixture(t, Options{Visibility: 10 * time.Second, MaxRedeliveries: 1})
	ctx := context.Background()
	require.NoError(t, f.queue.Enqueue(ctx, domain.NewEvaluationJob(uuid.New(), f.clock.Now())))
	_, err := f.queue.Reserve(ctx, reserveWait)
	require.NoError(t, err)

	f.clock.Advance(11 * time.Second)
	_, err = f.queue.Reserve(ctx, reserveWait)
	require.NoError(t, err)

	f.clock.Advance(11 * time.Second)
	require.NoError(t, f.queue.Maintain(ctx))
	assert.Equal(t, Depth{Dead: 1}, f.depth(t))

	records, err := f.queue.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, DeadLetterReasonRedeliveries, records[0].Reason)
	assert.Equal(t, 2, records[0].Job.Redeliveries)
	assert.Equal(t, 1, f.metrics.dead[DeadLetterReasonRedeliveries])
}

func TestDeadLetterRecordsReason(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.queue.Enqueue(ctx, domain.NewEvaluationJob(uuid.New(), f.clock.Now())))
	d, err := f.queue.Reserve(ctx, reserveWait)
	require.NoError(t, err)

	require.NoError(t, f.queue.DeadLetter(ctx, d, "transaction not found"))
	assert.Equal(t, Depth{Dead: 1}, f.depth(t))
	records, err := f.queue.DeadLetters(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, d.Job.ID, records[0].Job.ID)
	assert.Equal(t, "transaction not found", records[0].Reason)
	assert.Equal(t, "transaction not found", records[0].Job.LastError)
	assert.True(t, records[0].FailedAt.Equal(f.clock.Now()))
}

func TestMalformedJobIsDeadLettered(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	_, err := f.mr.Lpush("risk_queue", "{not json")
	require.NoError(t, err)

	_, err = f.queue.Reserve(ctx, reserveWait)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, Depth{Dead: 1}, f.depth(t))
	records, err := f.queue.DeadLetters(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "{not json", records[0].Raw)
	assert.Equal(t, 1, f.metrics.dead[DeadLetterReasonMalformed])
}

func TestOrphanedProcessingEntryIsRecovered(t *testing.T) {
	f := newFixture(t, Options{Visibility: 10 * time.Second})
	ctx := context.Background()
	job := domain.NewEvaluationJob(uuid.New(), f.clock.Now())
	require.NoError(t, f.queue.Enqueue(ctx, job))
	raw, err := f.mr.Lpop("risk_queue")
	require.NoError(t, err)
	_, err = f.mr.Lpush("risk_queue:processing", raw)
	require.NoError(t, err)

	require.NoError(t, f.queue.Maintain(ctx))
	assert.Equal(t, Depth{Processing: 1}, f.depth(t))

	f.clock.Advance(11 * time.Second)
	d, err := f.queue.Reserve(ctx, reserveWait)
	require.NoError(t, err)
	assert.Equal(t, job.ID, d.Job.ID)
	assert.Equal(t, 1, d.Job.Redeliveries)
}

func TestOrphanSweepCoversWholeProcessingList(t *testing.T) {
	f := newFixture(t, Options{Visibility: 10 * time.Second, SweepBatch: 2})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, f.queue.Enqueue(ctx, domain.NewEvaluationJob(uuid.New(), f.clock.Now())))
		raw, err := f.mr.Lpop("risk_queue")
		require.NoError(t, err)
		_, err = f.mr.Lpush("risk_queue:processing", raw)
		require.NoError(t, err)
	}

	require.NoError(t, f.queue.Maintain(ctx))
	leased, err := f.mr.ZMembers("risk_queue:leases")
	require.NoError(t, err)
	assert.Len(t, leased, 5)

	f.clock.Advance(11 * time.Second)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.queue.Maintain(ctx))
	}
	assert.Equal(t, Depth{Ready: 5}, f.depth(t))
}
