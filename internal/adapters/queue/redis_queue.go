package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/ports"
)

const (
	DefaultQueueName       = "risk_queue"
	DefaultVisibility      = 5 * time.Minute
	DefaultMaxRedeliveries = 5
	defaultSweepBatch      = 100

	DeadLetterReasonRedeliveries = "redelivery_limit_exceeded"
	DeadLetterReasonMalformed    = "malformed_job"
)

// promoteDueScript moves delayed jobs whose ETA has passed onto the ready list.
var promoteDueScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
	redis.call('ZREM', KEYS[1], member)
	redis.call('LPUSH', KEYS[2], member)
end
return #due
`)

type Options struct {
	Name            string
	Visibility      time.Duration
	MaxRedeliveries int
	SweepBatch      int
	Metrics         ports.Metrics
	Now             func() time.Time
}

// RedisQueue is an at-least-once work queue on Redis lists and sorted sets.
//
//	<name>             ready list, consumed from the right
//	<name>:processing  reserved jobs
//	<name>:leases      reserved jobs scored by visibility deadline (unix ms)
//	<name>:delayed     retries scored by ETA (unix ms)
//	<name>:dead        dead-letter records, newest first
type RedisQueue struct {
	client          redis.UniversalClient
	name            string
	visibility      time.Duration
	maxRedeliveries int
	sweepBatch      int
	metrics         ports.Metrics
	nowFn           func() time.Time
}

// DeadLetterRecord is the payload stored on the dead-letter list.
type DeadLetterRecord struct {
	Job      domain.Job `json:"job"`
	Raw      string     `json:"raw,omitempty"`
	Reason   string     `json:"reason"`
	FailedAt time.Time  `json:"failed_at"`
}

type Depth struct {
	Ready      int64
	Processing int64
	Delayed    int64
	Dead       int64
}

func NewRedisQueue(client redis.UniversalClient, opts Options) *RedisQueue {
	if opts.Name == "" {
		opts.Name = DefaultQueueName
	}
	if opts.Visibility <= 0 {
		opts.Visibility = DefaultVisibility
	}
	if opts.MaxRedeliveries <= 0 {
		opts.MaxRedeliveries = DefaultMaxRedeliveries
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = defaultSweepBatch
	}
	if opts.Metrics == nil {
		opts.Metrics = ports.NoopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RedisQueue{
		client:          client,
		name:            opts.Name,
		visibility:      opts.Visibility,
		maxRedeliveries: opts.MaxRedeliveries,
		sweepBatch:      opts.SweepBatch,
		metrics:         opts.Metrics,
		nowFn:           opts.Now,
	}
}

func (q *RedisQueue) Name() string { return q.name }

func (q *RedisQueue) processingKey() string { return q.name + ":processing" }
func (q *RedisQueue) leasesKey() string     { return q.name + ":leases" }
func (q *RedisQueue) delayedKey() string    { return q.name + ":delayed" }
func (q *RedisQueue) deadKey() string       { return q.name + ":dead" }

func (q *RedisQueue) now() time.Time { return q.nowFn().UTC() }

func (q *RedisQueue) Enqueue(ctx context.Context, job domain.Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = q.now()
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if job.ETA != nil && job.ETA.After(q.now()) {
		return q.client.ZAdd(ctx, q.delayedKey(), redis.Z{Score: unixMillis(*job.ETA), Member: string(raw)}).Err()
	}
	return q.client.LPush(ctx, q.name, raw).Err()
}

// Reserve blocks up to wait for a job. It returns domain.ErrQueueEmpty when none arrived.
func (q *RedisQueue) Reserve(ctx context.Context, wait time.Duration) (ports.Delivery, error) {
	if err := q.Maintain(ctx); err != nil {
		return ports.Delivery{}, err
	}
	raw, err := q.client.BLMove(ctx, q.name, q.processingKey(), "RIGHT", "LEFT", wait).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ports.Delivery{}, domain.ErrQueueEmpty
		}
		return ports.Delivery{}, err
	}
	reservedAt := q.now()
	if err := q.client.ZAdd(ctx, q.leasesKey(), redis.Z{
		Score:  unixMillis(reservedAt.Add(q.visibility)),
		Member: raw,
	}).Err(); err != nil {
		return ports.Delivery{}, err
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		d := ports.Delivery{Raw: raw, ReservedAt: reservedAt}
		if dlErr := q.DeadLetter(ctx, d, DeadLetterReasonMalformed); dlErr != nil {
			return ports.Delivery{}, dlErr
		}
		q.metrics.JobDeadLettered(DeadLetterReasonMalformed)
		return ports.Delivery{}, fmt.Errorf("%w: decode job: %v", domain.ErrInvalidInput, err)
	}
	return ports.Delivery{Job: job, Raw: raw, ReservedAt: reservedAt}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, d ports.Delivery) error {
	_, err := q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.processingKey(), 1, d.Raw)
		p.ZRem(ctx, q.leasesKey(), d.Raw)
		return nil
	})
	return err
}

// Retry releases the delivery and schedules the job again after delay with Attempt incremented.
func (q *RedisQueue) Retry(ctx context.Context, d ports.Delivery, delay time.Duration, reason string) error {
	job := d.Job
	job.Attempt++
	job.LastError = reason
	eta := q.now().Add(delay)
	job.ETA = &eta
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.processingKey(), 1, d.Raw)
		p.ZRem(ctx, q.leasesKey(), d.Raw)
		p.ZAdd(ctx, q.delayedKey(), redis.Z{Score: unixMillis(eta), Member: string(raw)})
		return nil
	})
	return err
}

func (q *RedisQueue) DeadLetter(ctx context.Context, d ports.Delivery, reason string) error {
	rec, err := q.deadLetterRecord(d.Job, d.Raw, reason)
	if err != nil {
		return err
	}
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.processingKey(), 1, d.Raw)
		p.ZRem(ctx, q.leasesKey(), d.Raw)
		p.LPush(ctx, q.deadKey(), rec)
		return nil
	})
	return err
}

func (q *RedisQueue) deadLetterRecord(job domain.Job, raw, reason string) ([]byte, error) {
	job.LastError = reason
	rec := DeadLetterRecord{Job: job, Reason: reason, FailedAt: q.now()}
	if job.ID == "" {
		rec.Raw = raw
	}
	out, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode dead letter: %w", err)
	}
	return out, nil
}

// Maintain promotes due retries, adopts reserved jobs that lost their lease,
// and redelivers jobs whose visibility window has lapsed.
func (q *RedisQueue) Maintain(ctx context.Context) error {
	now := q.now()
	if err := promoteDueScript.Run(ctx, q.client,
		[]string{q.delayedKey(), q.name},
		strconv.FormatInt(int64(unixMillis(now)), 10), q.sweepBatch,
	).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("promote delayed jobs: %w", err)
	}
	if err := q.adoptOrphans(ctx, now); err != nil {
		return err
	}
	return q.redeliverExpired(ctx, now)
}

// adoptOrphans leases processing entries without a lease, left by a consumer
// that stopped between reserving and leasing. The list is paged from the tail,
// where the oldest reservations sit.
func (q *RedisQueue) adoptOrphans(ctx context.Context, now time.Time) error {
	deadline := unixMillis(now.Add(q.visibility))
	batch := int64(q.sweepBatch)
	for offset := int64(0); ; offset += batch {
		inFlight, err := q.client.LRange(ctx, q.processingKey(), -(offset + batch), -(offset + 1)).Result()
		if err != nil {
			return fmt.Errorf("list processing jobs: %w", err)
		}
		if len(inFlight) == 0 {
			return nil
		}
		members := make([]redis.Z, 0, len(inFlight))
		for _, raw := range inFlight {
			members = append(members, redis.Z{Score: deadline, Member: raw})
		}
		if err := q.client.ZAddNX(ctx, q.leasesKey(), members...).Err(); err != nil {
			return fmt.Errorf("lease orphaned jobs: %w", err)
		}
		if int64(len(inFlight)) < batch {
			return nil
		}
	}
}

func (q *RedisQueue) redeliverExpired(ctx context.Context, now time.Time) error {
	expired, err := q.client.ZRangeByScore(ctx, q.leasesKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(int64(unixMillis(now)), 10),
		Count: int64(q.sweepBatch),
	}).Result()
	if err != nil {
		return fmt.Errorf("list expired leases: %w", err)
	}
	for _, raw := range expired {
		if err := q.redeliver(ctx, raw, now); err != nil && !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return nil
}

func (q *RedisQueue) redeliver(ctx context.Context, raw string, now time.Time) error {
	reason := ""
	err := q.client.Watch(ctx, func(tx *redis.Tx) error {
		score, err := tx.ZScore(ctx, q.leasesKey(), raw).Result()
		if errors.Is(err, redis.Nil) || (err == nil && score > unixMillis(now)) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.LPos(ctx, q.processingKey(), raw, redis.LPosArgs{}).Result(); err != nil {
			if !errors.Is(err, redis.Nil) {
				return err
			}
			// acked after the lease was adopted
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.ZRem(ctx, q.leasesKey(), raw)
				return nil
			})
			return err
		}

		dest := q.name
		var next []byte
		var job domain.Job
		if decodeErr := json.Unmarshal([]byte(raw), &job); decodeErr != nil {
			reason = DeadLetterReasonMalformed
		} else {
			job.Redeliveries++
			if job.Redeliveries > q.maxRedeliveries {
				reason = DeadLetterReasonRedeliveries
			}
		}
		if reason != "" {
			dest = q.deadKey()
			next, err = q.deadLetterRecord(job, raw, reason)
		} else {
			next, err = json.Marshal(job)
		}
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.ZRem(ctx, q.leasesKey(), raw)
			p.LRem(ctx, q.processingKey(), 1, raw)
			p.LPush(ctx, dest, next)
			return nil
		})
		return err
	}, q.leasesKey(), q.processingKey())
	if err == nil && reason != "" {
		q.metrics.JobDeadLettered(reason)
	}
	return err
}

func (q *RedisQueue) Depth(ctx context.Context) (Depth, error) {
	var ready, processing, delayed, dead *redis.IntCmd
	_, err := q.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		ready = p.LLen(ctx, q.name)
		processing = p.LLen(ctx, q.processingKey())
		delayed = p.ZCard(ctx, q.delayedKey())
		dead = p.LLen(ctx, q.deadKey())
		return nil
	})
	if err != nil {
		return Depth{}, err
	}
	return Depth{
		Ready:      ready.Val(),
		Processing: processing.Val(),
		Delayed:    delayed.Val(),
		Dead:       dead.Val(),
	}, nil
}

// DeadLetters returns up to limit dead-letter records, newest first.
func (q *RedisQueue) DeadLetters(ctx context.Context, limit int64) ([]DeadLetterRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	raws, err := q.client.LRange(ctx, q.deadKey(), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DeadLetterRecord, 0, len(raws))
	for _, raw := range raws {
		var rec DeadLetterRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func unixMillis(t time.Time) float64 {
	return float64(t.UnixMilli())
}
