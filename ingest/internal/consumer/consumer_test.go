package consumer

import (
	"context"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventlake-systems/eventlake/common/dlq"
	"github.com/eventlake-systems/eventlake/common/logging"
	"github.com/eventlake-systems/eventlake/common/metadata"
	"github.com/eventlake-systems/eventlake/common/storage"
	"github.com/eventlake-systems/eventlake/ingest/internal/codec"
	"github.com/eventlake-systems/eventlake/ingest/internal/processor"
)

// fakeMsg implements jetstream.Msg for routing-policy tests.
type fakeMsg struct {
	data      []byte
	subject   string
	delivered uint64
	acked     bool
	naked     bool
}

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{
		NumDelivered: m.delivered,
		Sequence:     jetstream.SequencePair{Stream: 42},
	}, nil
}

func (m *fakeMsg) Data() []byte { return m.data }
func (m *fakeMsg) Headers() natsgo.Header { return nil }
func (m *fakeMsg) Subject() string { return m.subject }
func (m *fakeMsg) Reply() string { return "" }
func (m *fakeMsg) Ack() error { m.acked = true; return nil }
func (m *fakeMsg) DoubleAck(context.Context) error { m.acked = true; return nil }
func (m *fakeMsg) Nak() error { m.naked = true; return nil }
func (m *fakeMsg) NakWithDelay(time.Duration) error { m.naked = true; return nil }
func (m *fakeMsg) InProgress() error { return nil }
func (m *fakeMsg) Term() error { return nil }
func (m *fakeMsg) TermWithReason(string) error { return nil }

// memoryDLQ collects dead-lettered entries.
type memoryDLQ struct {
	entries []dlq.Entry
	fail    bool
}

func (d *memoryDLQ) Write(ctx context.Context, entry dlq.Entry) error {
	if d.fail {
		return context.DeadlineExceeded
	}
	d.entries = append(d.entries, entry)
	return nil
}

func newTestConsumer(store storage.Store, deadLetter dlq.Writer) *Consumer {
	logger := logging.New(logging.ParseLevel("error"), "text")
	proc := processor.New(codec.New(true), store, metadata.NewMemory(), logger)
	return &Consumer{
		processor:  proc,
		deadLetter: deadLetter,
		logger:     logger,
		opts:       Options{BatchSize: 10, BatchWait: time.Second},
		maxDeliver: 3,
	}
}

func TestShardFromSubject(t *testing.T) {
	assert.Equal(t, "shard-0001", shardFromSubject("events.ingest.shard-0001"))
	assert.Equal(t, "events", shardFromSubject("events"))
}

func TestToStreamRecord(t *testing.T) {
	msg := &fakeMsg{data: []byte("payload"), subject: "events.ingest.shard-0002", delivered: 1}

	record := toStreamRecord(msg)
	assert.Equal(t, []byte("payload"), record.EncodedPayload)
	assert.Equal(t, "42", record.SequenceNumber)
	assert.Equal(t, "shard-0002", record.PartitionKeyHint)
}

func TestAckOutcomesRouting(t *testing.T) {
	c := newTestConsumer(storage.NewMemory(), &memoryDLQ{})

	msgs := []jetstream.Msg{&fakeMsg{}, &fakeMsg{}, &fakeMsg{}}
	outcomes := []processor.Outcome{
		{Status: processor.OutcomeSuccess},
		{Status: processor.OutcomeValidationFailed},
		{Status: processor.OutcomeWriteFailed},
	}

	c.ackOutcomes(context.Background(), msgs, outcomes)

	assert.True(t, msgs[0].(*fakeMsg).acked, "success should ack")
	assert.True(t, msgs[1].(*fakeMsg).acked, "validation failure is terminal, should ack")
	assert.True(t, msgs[2].(*fakeMsg).naked, "write failure should nak for redelivery")
}

func TestProcessDeliveryHealthyBatch(t *testing.T) {
	store := storage.NewMemory()
	c := newTestConsumer(store, &memoryDLQ{})

	payload := []byte("eyJ0aW1lc3RhbXAiOiIyMDI0LTAxLTE1VDEwOjMwOjAwWiIsImV2ZW50X3R5cGUiOiJ0cmFuc2FjdGlvbiIsImFtb3VudCI6MTUwMH0=")
	msg := &fakeMsg{data: payload, subject: "events.ingest.shard-0001", delivered: 1}

	c.processDelivery(context.Background(), []jetstream.Msg{msg})

	assert.True(t, msg.acked)
	keys, err := store.List(context.Background(), "raw/")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

// rejectingStore fails every write, forcing a whole-batch failure.
type rejectingStore struct{ storage.Memory }

func (s *rejectingStore) Put(ctx context.Context, key string, data []byte) error {
	return context.DeadlineExceeded
}

func TestProcessDeliveryExhaustedDeadLetters(t *testing.T) {
	deadLetter := &memoryDLQ{}
	c := newTestConsumer(&rejectingStore{}, deadLetter)

	payload := []byte("eyJ0aW1lc3RhbXAiOiIyMDI0LTAxLTE1VDEwOjMwOjAwWiIsImV2ZW50X3R5cGUiOiJ0cmFuc2FjdGlvbiIsImFtb3VudCI6MTUwMH0=")

	// Below the retry bound: nak, no DLQ entry.
	msg := &fakeMsg{data: payload, subject: "events.ingest.shard-0001", delivered: 1}
	c.processDelivery(context.Background(), []jetstream.Msg{msg})
	assert.True(t, msg.naked)
	assert.Empty(t, deadLetter.entries)

	// Final delivery: dead-letter and ack to stop the cycle.
	msg = &fakeMsg{data: payload, subject: "events.ingest.shard-0001", delivered: 3}
	c.processDelivery(context.Background(), []jetstream.Msg{msg})
	assert.True(t, msg.acked)
	require.Len(t, deadLetter.entries, 1)
	assert.Equal(t, dlq.StageIngest, deadLetter.entries[0].Stage)
	assert.Equal(t, dlq.ReasonExhausted, deadLetter.entries[0].Reason)
	assert.Equal(t, "42", deadLetter.entries[0].Reference)
}

func TestProcessDeliveryMixedDeliveryCounts(t *testing.T) {
	deadLetter := &memoryDLQ{}
	c := newTestConsumer(&rejectingStore{}, deadLetter)

	payload := []byte("eyJ0aW1lc3RhbXAiOiIyMDI0LTAxLTE1VDEwOjMwOjAwWiIsImV2ZW50X3R5cGUiOiJ0cmFuc2FjdGlvbiIsImFtb3VudCI6MTUwMH0=")

	// A refetch can mix a fresh message with one at the retry bound. Only
	// the exhausted one leaves for the DLQ; the fresh one gets its retries.
	fresh := &fakeMsg{data: payload, subject: "events.ingest.shard-0001", delivered: 1}
	spent := &fakeMsg{data: payload, subject: "events.ingest.shard-0001", delivered: 3}

	c.processDelivery(context.Background(), []jetstream.Msg{fresh, spent})

	assert.True(t, fresh.naked, "first delivery must be redelivered, not dead-lettered")
	assert.False(t, fresh.acked)
	assert.True(t, spent.acked, "exhausted delivery must leave the stream")
	require.Len(t, deadLetter.entries, 1)
	assert.Equal(t, dlq.ReasonExhausted, deadLetter.entries[0].Reason)
}

func TestProcessDeliveryDLQFailureKeepsMessage(t *testing.T) {
	deadLetter := &memoryDLQ{fail: true}
	c := newTestConsumer(&rejectingStore{}, deadLetter)

	payload := []byte("eyJ0aW1lc3RhbXAiOiIyMDI0LTAxLTE1VDEwOjMwOjAwWiIsImV2ZW50X3R5cGUiOiJ0cmFuc2FjdGlvbiIsImFtb3VudCI6MTUwMH0=")
	msg := &fakeMsg{data: payload, subject: "events.ingest.shard-0001", delivered: 3}

	c.processDelivery(context.Background(), []jetstream.Msg{msg})

	assert.False(t, msg.acked)
	assert.True(t, msg.naked, "message must stay on the stream when DLQ write fails")
}
