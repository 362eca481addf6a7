package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/ports"
)

type fakeOutbox struct {
	mu        sync.Mutex
	records   []ports.OutboxRecord
	published []uuid.UUID
	failed    []uuid.UUID
	dead      []uuid.UUID
	markErr   error
}

func (o *fakeOutbox) ClaimUnpublished(_ context.Context, limit int, _ string, _ time.Time) ([]ports.OutboxRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.records) > limit {
		return o.records[:limit], nil
	}
	return o.records, nil
}

func (o *fakeOutbox) MarkPublished(_ context.Context, id uuid.UUID, _ string, _ time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.markErr != nil {
		return o.markErr
	}
	o.published = append(o.published, id)
	return nil
}

func (o *fakeOutbox) MarkFailed(_ context.Context, id uuid.UUID, _, _ string, _ time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.markErr != nil {
		return o.markErr
	}
	o.failed = append(o.failed, id)
	return nil
}

func (o *fakeOutbox) MarkDeadLettered(_ context.Context, id uuid.UUID, _, _ string, _ time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.markErr != nil {
		return o.markErr
	}
	o.dead = append(o.dead, id)
	return nil
}

type fakePublisher struct {
	failFor map[string]bool
	sent    []string
}

func (p *fakePublisher) Publish(_ context.Context, eventType string, _ []byte, key string) error {
	if p.failFor[key] {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, eventType+"/"+key)
	return nil
}

func TestOutboxWorkerPublishesAndMarks(t *testing.T) {
	logger, logs := observedLogger()
	ok := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "transaction.evaluated", PartitionKey: "a"}
	flaky := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "transaction.evaluated", PartitionKey: "b", RetryCount: 1}
	poison := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "risk.alert_raised", PartitionKey: "c", RetryCount: 4}
	outbox := &fakeOutbox{records: []ports.OutboxRecord{ok, flaky, poison}}
	pub := &fakePublisher{failFor: map[string]bool{"b": true, "c": true}}

	w := NewOutboxWorker(logger, outbox, pub, OutboxWorkerConfig{MaxRetries: 5})
	require.NoError(t, w.ProcessOnce(context.Background()))

	assert.Equal(t, []string{"transaction.evaluated/a"}, pub.sent)
	assert.Equal(t, []uuid.UUID{ok.OutboxID}, outbox.published)
	assert.Equal(t, []uuid.UUID{flaky.OutboxID}, outbox.failed)
	assert.Equal(t, []uuid.UUID{poison.OutboxID}, outbox.dead)
	assert.Equal(t, 1, logs.FilterMessage("outbox event dead-lettered").Len())
	assert.Equal(t, 1, logs.FilterMessage("outbox batch processed").Len())
}

func TestOutboxWorkerLogsUnsettledClaims(t *testing.T) {
	logger, logs := observedLogger()
	ok := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "transaction.evaluated", PartitionKey: "a"}
	flaky := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "transaction.evaluated", PartitionKey: "b"}
	poison := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "risk.alert_raised", PartitionKey: "c", RetryCount: 4}
	outbox := &fakeOutbox{records: []ports.OutboxRecord{ok, flaky, poison}, markErr: errors.New("connection reset")}
	pub := &fakePublisher{failFor: map[string]bool{"b": true, "c": true}}

	w := NewOutboxWorker(logger, outbox, pub, OutboxWorkerConfig{MaxRetries: 5})
	require.NoError(t, w.ProcessOnce(context.Background()))

	entries := logs.FilterMessage("outbox record update failed").All()
	require.Len(t, entries, 3)
	ops := map[string]string{}
	for _, e := range entries {
		fields := e.ContextMap()
		ops[fields["operation"].(string)] = fields["outbox_id"].(string)
		assert.Equal(t, "events.outbox_worker", fields["module"])
		assert.Equal(t, "failure", fields["outcome"])
	}
	assert.Equal(t, map[string]string{
		"mark_published":     ok.OutboxID.String(),
		"mark_failed":        flaky.OutboxID.String(),
		"mark_dead_lettered": poison.OutboxID.String(),
	}, ops)
}

func TestLoggingPublisher(t *testing.T) {
	logger, logs := observedLogger()
	require.NoError(t, NewLoggingPublisher(logger).Publish(context.Background(), "risk.alert_raised", []byte("{}"), "k"))
	entries := logs.FilterMessage("event published").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "risk.alert_raised", entries[0].ContextMap()["event_type"])
}

func TestKafkaPublisherTopicMapping(t *testing.T) {
	_, err := NewKafkaPublisher(nil, nil)
	require.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, DefaultTopics("fraud.transaction.evaluated", ""))
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "fraud.transaction.evaluated", p.topicFor("transaction.evaluated"))
	assert.Equal(t, "risk.alert_raised", p.topicFor("risk.alert_raised"))
	assert.Equal(t, "other", p.topicFor("other"))
}
