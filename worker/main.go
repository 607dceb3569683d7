package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/aarush6848ddh/robust-data-processor/internal/config"
	"github.com/aarush6848ddh/robust-data-processor/internal/dedupe"
	"github.com/aarush6848ddh/robust-data-processor/internal/elasticsearch"
	"github.com/aarush6848ddh/robust-data-processor/internal/logger"
	"github.com/aarush6848ddh/robust-data-processor/internal/message"
	"github.com/aarush6848ddh/robust-data-processor/internal/models"
	"github.com/aarush6848ddh/robust-data-processor/internal/redact"
	"github.com/aarush6848ddh/robust-data-processor/internal/simulate"
)

// outcome tells the consume loop what to do with the delivered message.
type outcome int

const (
	// ack: processing finished (or there was nothing to process); commit.
	ack outcome = iota
	// retry: transient failure; leave the offset uncommitted so the
	// message is delivered again.
	retry
	// deadLetter: the message can never succeed; park it on the DLQ topic
	// and commit once the DLQ write lands.
	deadLetter
)

type processedStore interface {
	UpsertProcessedLog(ctx context.Context, rec models.ProcessedRecord) error
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := connectElasticsearch(ctx, log, cfg)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)
	sim := simulate.New(cfg.DelayPerChar, cfg.MaxTotalSleep)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.ConsumerGroup,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // Disable auto-commit; manual commit only
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.Topic),
		slog.String("group", cfg.ConsumerGroup),
		slog.String("dlq_topic", cfg.Topic+"_dlq"),
		slog.Duration("delay_per_char", cfg.DelayPerChar),
		slog.Duration("max_total_sleep", cfg.MaxTotalSleep),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		out, err := processWithRetry(ctx, log, esClient, cache, sim, msg, time.Second)
		switch out {
		case ack:
			if err := reader.CommitMessages(ctx, msg); err != nil {
				log.Error("commit message", slog.Any("err", err))
			}

		case retry:
			// Only reachable on shutdown: the offset stays uncommitted so
			// the message is delivered again after the restart.
			log.Info("context canceled, stopping", slog.Any("err", err))
			return

		case deadLetter:
			log.Warn("message cannot be processed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)
			if sendToDLQ(ctx, log, dlqWriter, msg, err) {
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Error("commit dead-lettered message", slog.Any("err", err))
				}
			}
		}
	}
}

// processWithRetry runs processMessage and retries transient failures in
// place with exponential backoff. Committing a later offset would commit
// every earlier one with it, so the loop never moves past a failed message;
// it returns retry only when the context ends first, leaving the offset
// uncommitted for redelivery.
func processWithRetry(ctx context.Context, log *slog.Logger, store processedStore, cache *dedupe.Cache, sim simulate.Simulator, msg kafka.Message, backoff time.Duration) (outcome, error) {
	for {
		out, err := processMessage(ctx, log, store, cache, sim, msg)
		if out != retry {
			return out, err
		}

		log.Warn("process message failed, retrying in place",
			slog.Any("err", err),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Duration("backoff", backoff),
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return retry, err
		}

		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

// processMessage runs the full consumer pipeline for one delivery:
// decode -> validate identity -> simulate processing -> redact -> upsert.
func processMessage(ctx context.Context, log *slog.Logger, store processedStore, cache *dedupe.Cache, sim simulate.Simulator, msg kafka.Message) (outcome, error) {
	if len(msg.Value) == 0 {
		// Nothing to process; acknowledge and move on.
		log.Debug("empty message body, skipping")
		return ack, nil
	}

	m, err := message.Decode(msg)
	if err != nil {
		// Without both identity fields a write would be ambiguous across
		// tenants. Redelivery cannot fix that, so the message is parked.
		return deadLetter, err
	}

	key := dedupe.Key(m.TenantID, m.LogID, m.Text)
	if cache.Seen(key) {
		log.Debug("redelivered message already processed",
			slog.String("tenant_id", m.TenantID),
			slog.String("log_id", m.LogID),
		)
		return ack, nil
	}

	if err := sim.Run(ctx, m.Text); err != nil {
		return retry, fmt.Errorf("simulate processing: %w", err)
	}

	rec := models.ProcessedRecord{
		TenantID:     m.TenantID,
		LogID:        m.LogID,
		Source:       m.Source,
		OriginalText: m.Text,
		ModifiedData: redact.Sensitive(m.Text),
		ProcessedAt:  time.Now().UTC(),
	}

	if err := store.UpsertProcessedLog(ctx, rec); err != nil {
		return retry, fmt.Errorf("upsert processed log: %w", err)
	}

	cache.Record(key)
	log.Info("processed log",
		slog.String("tenant_id", m.TenantID),
		slog.String("log_id", m.LogID),
		slog.String("source", m.Source),
	)
	return ack, nil
}

// sendToDLQ parks a failed message on the dead-letter topic, retrying with
// exponential backoff. Returns true once the DLQ write succeeded.
func sendToDLQ(ctx context.Context, log *slog.Logger, dlqWriter *kafka.Writer, msg kafka.Message, cause error) bool {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := 0; attempt < 5; attempt++ {
		if err := dlqWriter.WriteMessages(ctx, dlqMsg); err == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		} else {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			log.Warn("DLQ write failed, retrying",
				slog.Any("err", err),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				log.Info("context canceled during DLQ retry")
				return false
			}
		}
	}

	log.Error("DLQ write exhausted retries, offset left uncommitted",
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)
	return false
}

// connectElasticsearch builds the storage client and verifies connectivity
// with exponential backoff before the consume loop starts.
func connectElasticsearch(ctx context.Context, log *slog.Logger, cfg *config.Worker) (*elasticsearch.Client, error) {
	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		return nil, err
	}

	retryDelay := 2 * time.Second
	for attempt := 1; attempt <= 10; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = esClient.Ping(pingCtx)
		cancel()
		if err == nil {
			log.Info("connected to elasticsearch", slog.String("addr", cfg.ElasticsearchAddr))
			return esClient, nil
		}

		log.Warn("elasticsearch ping failed, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", retryDelay),
		)

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		retryDelay *= 2
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}
	}

	return nil, fmt.Errorf("elasticsearch unreachable: %w", err)
}
