package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Kafka holds message-channel parameters shared by the ingest and worker
// services.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Storage holds Elasticsearch parameters shared by the worker and the
// retention job.
type Storage struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Ingest describes the HTTP intake service.
type Ingest struct {
	Kafka
	BindAddr     string
	MaxBodyBytes int64
}

// Worker holds configuration for the Kafka -> Elasticsearch worker.
type Worker struct {
	Kafka
	Storage
	ConsumerGroup  string
	DelayPerChar   time.Duration
	MaxTotalSleep  time.Duration
	DedupeCapacity int
	DedupeTTL      time.Duration
	BatchSize      int
}

// Retention configures the cleanup loop.
type Retention struct {
	Storage
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

// LoadIngest builds an Ingest config from environment variables.
func LoadIngest() (*Ingest, error) {
	c := &Ingest{
		Kafka:        loadKafka(),
		BindAddr:     getEnv("INGEST_BIND_ADDR", "0.0.0.0:8080"),
		MaxBodyBytes: int64(getInt("INGEST_MAX_BODY_BYTES", 1<<20)),
	}

	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("INGEST_MAX_BODY_BYTES must be positive")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
//
// DELAY_PER_CHAR and MAX_TOTAL_SLEEP are in seconds (defaults 0.05 and 55),
// matching the knobs of the processing simulator.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Kafka:          loadKafka(),
		Storage:        loadStorage(),
		ConsumerGroup:  getEnv("KAFKA_CONSUMER_GROUP", "log-worker"),
		DelayPerChar:   getSeconds("DELAY_PER_CHAR", 0.05),
		MaxTotalSleep:  getSeconds("MAX_TOTAL_SLEEP", 55),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "1h"),
		BatchSize:      getInt("WORKER_BATCH_SIZE", 10),
	}

	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.DelayPerChar < 0 {
		return nil, fmt.Errorf("DELAY_PER_CHAR cannot be negative")
	}
	if c.MaxTotalSleep <= 0 {
		return nil, fmt.Errorf("MAX_TOTAL_SLEEP must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Storage:   loadStorage(),
		Interval:  getDuration("RETENTION_INTERVAL", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_INTERVAL must be positive")
	}
	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func loadKafka() Kafka {
	return Kafka{
		Brokers: splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		Topic:   getEnv("KAFKA_TOPIC", "logs_normalized"),
	}
}

func loadStorage() Storage {
	return Storage{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "processed_logs"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// getSeconds reads a float number of seconds, e.g. DELAY_PER_CHAR=0.05.
func getSeconds(key string, fallback float64) time.Duration {
	raw := getEnv(key, "")
	if raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			return time.Duration(parsed * float64(time.Second))
		}
	}
	return time.Duration(fallback * float64(time.Second))
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
