package processor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventlake-systems/eventlake/common/logging"
	"github.com/eventlake-systems/eventlake/common/metadata"
	"github.com/eventlake-systems/eventlake/common/models"
	"github.com/eventlake-systems/eventlake/common/storage"
	"github.com/eventlake-systems/eventlake/ingest/internal/codec"
)

func newTestProcessor(store storage.Store) (*Processor, *metadata.Memory) {
	repo := metadata.NewMemory()
	logger := logging.New(logging.ParseLevel("error"), "text")
	return New(codec.New(true), store, repo, logger), repo
}

func streamRecord(seq, payload string) models.StreamRecord {
	return models.StreamRecord{
		EncodedPayload:   []byte(base64.StdEncoding.EncodeToString([]byte(payload))),
		SequenceNumber:   seq,
		PartitionKeyHint: "shard-0001",
	}
}

func transactionRecord(seq, timestamp string, amount float64) models.StreamRecord {
	payload := fmt.Sprintf(`{"timestamp":%q,"event_type":"transaction","amount":%v,"user":%q}`,
		timestamp, amount, gofakeit.Username())
	return streamRecord(seq, payload)
}

func TestProcessBatchSinglePartition(t *testing.T) {
	store := storage.NewMemory()
	p, repo := newTestProcessor(store)

	records := []models.StreamRecord{
		transactionRecord("100", "2024-01-15T10:05:00Z", 12),
		transactionRecord("101", "2024-01-15T10:30:00Z", 1500),
		transactionRecord("102", "2024-01-15T10:59:59Z", 7),
	}

	result, err := p.ProcessBatch(context.Background(), "batch-1", "shard-0001", records)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Stats.Total)
	assert.Equal(t, 3, result.Stats.Success)
	assert.Equal(t, 0, result.Stats.Failed)
	assert.Equal(t, 1, result.Stats.Partitions)

	// One raw object under the shared hour partition, keyed by the first
	// sequence number.
	wantKey := "raw/event_type=transaction/year=2024/month=01/day=15/hour=10/data_100.json"
	body, err := store.Get(context.Background(), wantKey)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	require.Len(t, lines, 3)

	// Arrival order is preserved within the partition.
	var first models.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "100", first.SequenceNumber)

	// One audit row, counts balanced.
	meta, err := repo.GetByBatchID(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, meta.TotalRecords, meta.SuccessRecords+meta.FailedRecords)
	assert.Equal(t, 1, meta.PartitionsCount)
}

func TestProcessBatchTwoPartitions(t *testing.T) {
	store := storage.NewMemory()
	p, repo := newTestProcessor(store)

	// 7 records in one event_type/hour, 3 in another.
	var records []models.StreamRecord
	for i := 0; i < 7; i++ {
		records = append(records, transactionRecord(fmt.Sprintf("1%02d", i), "2024-01-15T10:30:00Z", 50))
	}
	for i := 0; i < 3; i++ {
		records = append(records, streamRecord(fmt.Sprintf("2%02d", i),
			`{"timestamp":"2024-01-15T11:00:00Z","event_type":"metric","value":42}`))
	}

	result, err := p.ProcessBatch(context.Background(), "batch-2", "shard-0001", records)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Stats.Partitions)
	assert.Equal(t, 10, result.Stats.Success)

	keys, err := store.List(context.Background(), "raw/")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	meta, err := repo.GetByBatchID(context.Background(), "batch-2")
	require.NoError(t, err)
	assert.Equal(t, 2, meta.PartitionsCount)
}

func TestProcessBatchValidationFailureExcluded(t *testing.T) {
	store := storage.NewMemory()
	p, repo := newTestProcessor(store)

	records := []models.StreamRecord{
		transactionRecord("100", "2024-01-15T10:30:00Z", 10),
		streamRecord("101", `{"timestamp":"2024-01-15T10:30:00Z","amount":5}`), // no event_type
	}

	result, err := p.ProcessBatch(context.Background(), "batch-3", "shard-0001", records)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Stats.Total)
	assert.Equal(t, 1, result.Stats.Success)
	assert.Equal(t, 1, result.Stats.Failed)

	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, OutcomeSuccess, result.Outcomes[0].Status)
	assert.Equal(t, OutcomeValidationFailed, result.Outcomes[1].Status)

	var validationErr *models.ValidationError
	require.ErrorAs(t, result.Outcomes[1].Err, &validationErr)
	assert.Equal(t, "event_type", validationErr.Field)

	// The invalid record is not in the raw object.
	keys, err := store.List(context.Background(), "raw/")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	body, err := store.Get(context.Background(), keys[0])
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(body), "\n"))

	meta, err := repo.GetByBatchID(context.Background(), "batch-3")
	require.NoError(t, err)
	assert.Equal(t, 1, meta.FailedRecords)
}

// failingStore fails Put for keys containing a marker substring.
type failingStore struct {
	*storage.Memory
	failOn string
}

func (f *failingStore) Put(ctx context.Context, key string, data []byte) error {
	if f.failOn == "" || strings.Contains(key, f.failOn) {
		return errors.New("store unavailable")
	}
	return f.Memory.Put(ctx, key, data)
}

func TestProcessBatchPartialWriteFailure(t *testing.T) {
	store := &failingStore{Memory: storage.NewMemory(), failOn: "event_type=metric"}
	p, repo := newTestProcessor(store)

	records := []models.StreamRecord{
		transactionRecord("100", "2024-01-15T10:30:00Z", 10),
		streamRecord("200", `{"timestamp":"2024-01-15T10:30:00Z","event_type":"metric","value":1}`),
	}

	// One partition fails, the other lands: partial success, no batch error.
	result, err := p.ProcessBatch(context.Background(), "batch-4", "shard-0001", records)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stats.Success)
	assert.Equal(t, 1, result.Stats.Failed)
	assert.Equal(t, 1, result.Stats.Partitions)

	statuses := map[string]OutcomeStatus{}
	for _, o := range result.Outcomes {
		statuses[o.SequenceNumber] = o.Status
	}
	assert.Equal(t, OutcomeSuccess, statuses["100"])
	assert.Equal(t, OutcomeWriteFailed, statuses["200"])

	var writeErr *models.WriteError
	for _, o := range result.Outcomes {
		if o.SequenceNumber == "200" {
			require.ErrorAs(t, o.Err, &writeErr)
		}
	}

	meta, err := repo.GetByBatchID(context.Background(), "batch-4")
	require.NoError(t, err)
	assert.Equal(t, meta.TotalRecords, meta.SuccessRecords+meta.FailedRecords)
}

func TestProcessBatchAllWritesFailed(t *testing.T) {
	store := &failingStore{Memory: storage.NewMemory()}
	p, repo := newTestProcessor(store)

	records := []models.StreamRecord{
		transactionRecord("100", "2024-01-15T10:30:00Z", 10),
	}

	// No output at all: whole-batch failure, eligible for caller retry.
	_, err := p.ProcessBatch(context.Background(), "batch-5", "shard-0001", records)
	require.Error(t, err)

	// No metadata row for a failed invocation.
	assert.Equal(t, 0, repo.Len())
}

func TestProcessBatchEmptyBatch(t *testing.T) {
	store := storage.NewMemory()
	p, repo := newTestProcessor(store)

	result, err := p.ProcessBatch(context.Background(), "batch-6", "shard-0001", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Stats.Total)
	assert.Equal(t, 0, result.Stats.Partitions)
	assert.Equal(t, 1, repo.Len())
}

func TestProcessBatchDeterministicKeys(t *testing.T) {
	ctx := context.Background()
	records := []models.StreamRecord{
		transactionRecord("100", "2024-01-15T10:30:00Z", 10),
	}

	storeA := storage.NewMemory()
	pA, _ := newTestProcessor(storeA)
	_, err := pA.ProcessBatch(ctx, "batch-7", "shard-0001", records)
	require.NoError(t, err)

	// Retrying the same batch rewrites the same key.
	_, err = pA.ProcessBatch(ctx, "batch-7", "shard-0001", records)
	require.NoError(t, err)

	keys, err := storeA.List(ctx, "raw/")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}
