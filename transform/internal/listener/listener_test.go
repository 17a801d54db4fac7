package listener

import (
	"context"
	"encoding/json"
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
	"github.com/eventlake-systems/eventlake/transform/internal/enrich"
	"github.com/eventlake-systems/eventlake/transform/internal/idempotency"
	"github.com/eventlake-systems/eventlake/transform/internal/processor"
)

const rawKey = "raw/event_type=transaction/year=2024/month=01/day=15/hour=10/data_100.json"

// fakeMsg implements jetstream.Msg for routing-policy tests.
type fakeMsg struct {
	data      []byte
	delivered uint64
	acked     bool
	naked     bool
}

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{NumDelivered: m.delivered}, nil
}

func (m *fakeMsg) Data() []byte { return m.data }
func (m *fakeMsg) Headers() natsgo.Header { return nil }
func (m *fakeMsg) Subject() string { return "objects.raw.created" }
func (m *fakeMsg) Reply() string { return "" }
func (m *fakeMsg) Ack() error { m.acked = true; return nil }
func (m *fakeMsg) DoubleAck(context.Context) error { m.acked = true; return nil }
func (m *fakeMsg) Nak() error { m.naked = true; return nil }
func (m *fakeMsg) NakWithDelay(time.Duration) error { m.naked = true; return nil }
func (m *fakeMsg) InProgress() error { return nil }
func (m *fakeMsg) Term() error { return nil }
func (m *fakeMsg) TermWithReason(string) error { return nil }

type memoryDLQ struct {
	entries []dlq.Entry
}

func (d *memoryDLQ) Write(ctx context.Context, entry dlq.Entry) error {
	d.entries = append(d.entries, entry)
	return nil
}

func notification(t *testing.T, key string) []byte {
	t.Helper()
	data, err := json.Marshal(storage.ObjectCreated{Bucket: "eventlake", Key: key})
	require.NoError(t, err)
	return data
}

func newTestListener(store storage.Store, guard idempotency.Guard, deadLetter dlq.Writer) *Listener {
	logger := logging.New(logging.ParseLevel("error"), "text")
	proc := processor.New(enrich.New(enrich.DefaultThresholds()), store, metadata.NewMemory(), nil, logger)
	return &Listener{
		processor:  proc,
		guard:      guard,
		deadLetter: deadLetter,
		logger:     logger,
		opts:       Options{RawPrefix: "raw/", ObjectSuffix: ".json"},
		maxDeliver: 3,
	}
}

func TestHandleTransformsRawObject(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Put(ctx, rawKey,
		[]byte(`{"timestamp":"2024-01-15T10:30:00Z","event_type":"transaction","amount":1500}`+"\n")))

	l := newTestListener(store, idempotency.NoOp{}, &memoryDLQ{})
	msg := &fakeMsg{data: notification(t, rawKey), delivered: 1}

	l.handle(ctx, msg)

	assert.True(t, msg.acked)
	keys, err := store.List(ctx, "processed/")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestHandleFiltersIneligibleKeys(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	l := newTestListener(store, idempotency.NoOp{}, &memoryDLQ{})

	for _, key := range []string{
		"processed/event_type=metric/year=2024/month=01/day=15/hour=10/data_1_transformed.json",
		"raw/event_type=metric/year=2024/month=01/day=15/hour=10/manifest.txt",
		"",
	} {
		msg := &fakeMsg{data: notification(t, key), delivered: 1}
		l.handle(ctx, msg)
		assert.True(t, msg.acked, "key %q should be filtered and acked", key)
	}

	keys, err := store.List(ctx, "processed/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestHandleMalformedNotification(t *testing.T) {
	deadLetter := &memoryDLQ{}
	l := newTestListener(storage.NewMemory(), idempotency.NoOp{}, deadLetter)

	msg := &fakeMsg{data: []byte(`{{{`), delivered: 1}
	l.handle(context.Background(), msg)

	assert.True(t, msg.acked)
	require.Len(t, deadLetter.entries, 1)
	assert.Equal(t, dlq.ReasonDecodeFailed, deadLetter.entries[0].Reason)
}

func TestHandleUnreadableObjectRetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	deadLetter := &memoryDLQ{}
	// Object never written: every fetch is a hard failure.
	l := newTestListener(storage.NewMemory(), idempotency.NoOp{}, deadLetter)

	msg := &fakeMsg{data: notification(t, rawKey), delivered: 1}
	l.handle(ctx, msg)
	assert.True(t, msg.naked, "first failure should redeliver")
	assert.Empty(t, deadLetter.entries)

	msg = &fakeMsg{data: notification(t, rawKey), delivered: 3}
	l.handle(ctx, msg)
	assert.True(t, msg.acked, "final failure should leave the stream")
	require.Len(t, deadLetter.entries, 1)
	assert.Equal(t, dlq.StageTransform, deadLetter.entries[0].Stage)
	assert.Equal(t, dlq.ReasonReadFailed, deadLetter.entries[0].Reason)
	assert.Equal(t, rawKey, deadLetter.entries[0].Reference)
}

// recordingGuard remembers completion markers in-process.
type recordingGuard struct {
	marked map[string]bool
}

func newRecordingGuard() *recordingGuard {
	return &recordingGuard{marked: map[string]bool{}}
}

func (g *recordingGuard) Seen(ctx context.Context, key string) (bool, error) {
	return g.marked[key], nil
}

func (g *recordingGuard) Mark(ctx context.Context, key string) error {
	g.marked[key] = true
	return nil
}

func (g *recordingGuard) Close() error { return nil }

func TestHandleDuplicateNotificationSkipped(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Put(ctx, rawKey,
		[]byte(`{"timestamp":"2024-01-15T10:30:00Z","event_type":"transaction","amount":1}`+"\n")))

	guard := newRecordingGuard()
	require.NoError(t, guard.Mark(ctx, rawKey))

	l := newTestListener(store, guard, &memoryDLQ{})
	msg := &fakeMsg{data: notification(t, rawKey), delivered: 2}

	l.handle(ctx, msg)

	assert.True(t, msg.acked)
	keys, err := store.List(ctx, "processed/")
	require.NoError(t, err)
	assert.Empty(t, keys, "duplicate must not re-transform")
}

func TestHandleMarksOnlyAfterSuccess(t *testing.T) {
	ctx := context.Background()
	guard := newRecordingGuard()
	// Object never written: the transformation fails.
	l := newTestListener(storage.NewMemory(), guard, &memoryDLQ{})

	msg := &fakeMsg{data: notification(t, rawKey), delivered: 1}
	l.handle(ctx, msg)

	assert.False(t, guard.marked[rawKey],
		"failed transformation must not leave a completion marker")
}

func TestHandleRedeliveryAfterCrashedRunTransforms(t *testing.T) {
	// A worker that died mid-transformation left no completion marker. The
	// redelivered notification must be transformed and acked, not skipped
	// as a duplicate.
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Put(ctx, rawKey,
		[]byte(`{"timestamp":"2024-01-15T10:30:00Z","event_type":"transaction","amount":1500}`+"\n")))

	guard := newRecordingGuard()
	l := newTestListener(store, guard, &memoryDLQ{})
	msg := &fakeMsg{data: notification(t, rawKey), delivered: 2}

	l.handle(ctx, msg)

	assert.True(t, msg.acked)
	keys, err := store.List(ctx, "processed/")
	require.NoError(t, err)
	assert.Len(t, keys, 1, "redelivery must produce the processed object")
	assert.True(t, guard.marked[rawKey], "completed run must mark the key")
}
