package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/aarush6848ddh/robust-data-processor/internal/dedupe"
	"github.com/aarush6848ddh/robust-data-processor/internal/message"
	"github.com/aarush6848ddh/robust-data-processor/internal/models"
	"github.com/aarush6848ddh/robust-data-processor/internal/simulate"
)

type stubStore struct {
	records  []models.ProcessedRecord
	err      error
	failures int // fail this many writes before succeeding
}

func (s *stubStore) UpsertProcessedLog(_ context.Context, rec models.ProcessedRecord) error {
	if s.err != nil {
		return s.err
	}
	if s.failures > 0 {
		s.failures--
		return errors.New("elasticsearch unavailable")
	}
	s.records = append(s.records, rec)
	return nil
}

func testDeps() (*slog.Logger, *dedupe.Cache, simulate.Simulator) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := dedupe.NewCache(100, time.Hour)
	sim := simulate.New(time.Nanosecond, time.Millisecond)
	return log, cache, sim
}

func TestProcessMessageWritesRedactedRecord(t *testing.T) {
	log, cache, sim := testDeps()
	store := &stubStore{}

	msg := message.Encode(models.NormalizedMessage{
		TenantID: "t1",
		LogID:    "log-1",
		Text:     "call 555-0199",
		Source:   models.SourceJSONUpload,
	})

	out, err := processMessage(context.Background(), log, store, cache, sim, msg)
	require.NoError(t, err)
	require.Equal(t, ack, out)
	require.Len(t, store.records, 1)

	rec := store.records[0]
	require.Equal(t, "t1", rec.TenantID)
	require.Equal(t, "log-1", rec.LogID)
	require.Equal(t, models.SourceJSONUpload, rec.Source)
	require.Equal(t, "call 555-0199", rec.OriginalText)
	require.Equal(t, "call [REDACTED]", rec.ModifiedData)
	require.False(t, rec.ProcessedAt.IsZero())
	require.Equal(t, "t1:log-1", rec.DocumentID())
}

func TestProcessMessageSkipsIdenticalRedelivery(t *testing.T) {
	log, cache, sim := testDeps()
	store := &stubStore{}

	msg := message.Encode(models.NormalizedMessage{
		TenantID: "t1",
		LogID:    "log-1",
		Text:     "same payload",
		Source:   models.SourceTextUpload,
	})

	out, err := processMessage(context.Background(), log, store, cache, sim, msg)
	require.NoError(t, err)
	require.Equal(t, ack, out)

	out, err = processMessage(context.Background(), log, store, cache, sim, msg)
	require.NoError(t, err)
	require.Equal(t, ack, out)

	require.Len(t, store.records, 1)
}

func TestProcessMessageMissingIdentityDeadLetters(t *testing.T) {
	log, cache, sim := testDeps()
	store := &stubStore{}

	tests := []struct {
		name    string
		headers []kafka.Header
	}{
		{name: "no headers", headers: nil},
		{name: "empty log_id", headers: []kafka.Header{
			{Key: message.HeaderTenantID, Value: []byte("t1")},
			{Key: message.HeaderLogID, Value: []byte("")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := kafka.Message{Value: []byte("payload"), Headers: tt.headers}
			out, err := processMessage(context.Background(), log, store, cache, sim, msg)
			require.ErrorIs(t, err, message.ErrMissingIdentity)
			require.Equal(t, deadLetter, out)
			require.Empty(t, store.records)
		})
	}
}

func TestProcessMessageEmptyBodyIsNoOp(t *testing.T) {
	log, cache, sim := testDeps()
	store := &stubStore{}

	out, err := processMessage(context.Background(), log, store, cache, sim, kafka.Message{})
	require.NoError(t, err)
	require.Equal(t, ack, out)
	require.Empty(t, store.records)
}

func TestProcessMessageStoreFailureRetries(t *testing.T) {
	log, cache, sim := testDeps()
	store := &stubStore{err: errors.New("elasticsearch unavailable")}

	msg := message.Encode(models.NormalizedMessage{
		TenantID: "t1",
		LogID:    "log-1",
		Text:     "payload",
		Source:   models.SourceJSONUpload,
	})

	out, err := processMessage(context.Background(), log, store, cache, sim, msg)
	require.Error(t, err)
	require.Equal(t, retry, out)

	// The failed attempt must not poison the cache: once the store
	// recovers, the redelivered message is written.
	store.err = nil
	out, err = processMessage(context.Background(), log, store, cache, sim, msg)
	require.NoError(t, err)
	require.Equal(t, ack, out)
	require.Len(t, store.records, 1)
}

func TestProcessWithRetryRecoversInPlace(t *testing.T) {
	log, cache, sim := testDeps()
	store := &stubStore{failures: 2}

	msg := message.Encode(models.NormalizedMessage{
		TenantID: "t1",
		LogID:    "log-1",
		Text:     "payload",
		Source:   models.SourceJSONUpload,
	})

	// Two transient failures, then the store recovers: the same delivery
	// is retried until it lands, never skipped past.
	out, err := processWithRetry(context.Background(), log, store, cache, sim, msg, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, ack, out)
	require.Len(t, store.records, 1)
	require.Equal(t, "t1:log-1", store.records[0].DocumentID())
}

func TestProcessWithRetryStopsOnShutdown(t *testing.T) {
	log, cache, sim := testDeps()
	store := &stubStore{err: errors.New("elasticsearch unavailable")}

	msg := message.Encode(models.NormalizedMessage{
		TenantID: "t1",
		LogID:    "log-1",
		Text:     "payload",
		Source:   models.SourceJSONUpload,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := processWithRetry(ctx, log, store, cache, sim, msg, time.Minute)
	require.Error(t, err)
	require.Equal(t, retry, out)
	require.Empty(t, store.records)
}

func TestProcessWithRetryPassesThroughDeadLetter(t *testing.T) {
	log, cache, sim := testDeps()
	store := &stubStore{}

	msg := kafka.Message{Value: []byte("payload")}
	out, err := processWithRetry(context.Background(), log, store, cache, sim, msg, time.Millisecond)
	require.ErrorIs(t, err, message.ErrMissingIdentity)
	require.Equal(t, deadLetter, out)
	require.Empty(t, store.records)
}

func TestProcessMessageIdempotentWrites(t *testing.T) {
	log, _, sim := testDeps()
	store := &stubStore{}

	msg := message.Encode(models.NormalizedMessage{
		TenantID: "t1",
		LogID:    "log-1",
		Text:     "call 555-123-4567",
		Source:   models.SourceJSONUpload,
	})

	// Fresh cache per delivery, as if two worker instances raced on the
	// same redelivered message: both writes target the same document with
	// the same content.
	for i := 0; i < 2; i++ {
		cache := dedupe.NewCache(100, time.Hour)
		out, err := processMessage(context.Background(), log, store, cache, sim, msg)
		require.NoError(t, err)
		require.Equal(t, ack, out)
	}

	require.Len(t, store.records, 2)
	require.Equal(t, store.records[0].DocumentID(), store.records[1].DocumentID())
	require.Equal(t, store.records[0].Source, store.records[1].Source)
	require.Equal(t, store.records[0].OriginalText, store.records[1].OriginalText)
	require.Equal(t, store.records[0].ModifiedData, store.records[1].ModifiedData)
	require.Equal(t, "[REDACTED]", store.records[0].ModifiedData)
}
