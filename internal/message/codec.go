// Package message translates between NormalizedMessage and the Kafka wire
// shape: body = raw UTF-8 text, headers = tenant_id, log_id and source.
package message

import (
	"errors"

	"github.com/segmentio/kafka-go"

	"github.com/aarush6848ddh/robust-data-processor/internal/models"
)

// Header keys carried on every message.
const (
	HeaderTenantID = "tenant_id"
	HeaderLogID    = "log_id"
	HeaderSource   = "source"
)

// ErrMissingIdentity means a message arrived without tenant_id or log_id.
// Writing such a message anyway would break tenant isolation and the
// idempotency key, so decoding refuses rather than guessing.
var ErrMissingIdentity = errors.New("missing tenant_id or log_id in message headers")

// Encode builds the outbound Kafka message. The key is the tenant id, which
// groups a tenant's messages on one partition; nothing downstream depends on
// that ordering.
func Encode(m models.NormalizedMessage) kafka.Message {
	return kafka.Message{
		Key:   []byte(m.TenantID),
		Value: []byte(m.Text),
		Headers: []kafka.Header{
			{Key: HeaderTenantID, Value: []byte(m.TenantID)},
			{Key: HeaderLogID, Value: []byte(m.LogID)},
			{Key: HeaderSource, Value: []byte(m.Source)},
		},
	}
}

// Decode rebuilds a NormalizedMessage from a delivered Kafka message.
// A missing source header degrades to "unknown"; missing identity headers
// are an error.
func Decode(msg kafka.Message) (models.NormalizedMessage, error) {
	m := models.NormalizedMessage{Text: string(msg.Value)}

	for _, h := range msg.Headers {
		switch h.Key {
		case HeaderTenantID:
			m.TenantID = string(h.Value)
		case HeaderLogID:
			m.LogID = string(h.Value)
		case HeaderSource:
			m.Source = string(h.Value)
		}
	}

	if m.TenantID == "" || m.LogID == "" {
		return models.NormalizedMessage{}, ErrMissingIdentity
	}

	if m.Source == "" {
		m.Source = models.SourceUnknown
	}

	return m, nil
}
