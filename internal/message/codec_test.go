package message_test

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/aarush6848ddh/robust-data-processor/internal/message"
	"github.com/aarush6848ddh/robust-data-processor/internal/models"
)

func TestEncodeDecode(t *testing.T) {
	in := models.NormalizedMessage{
		TenantID: "acme",
		LogID:    "log-1",
		Text:     "call 555-0199",
		Source:   models.SourceJSONUpload,
	}

	wire := message.Encode(in)
	require.Equal(t, []byte("acme"), wire.Key)
	require.Equal(t, []byte("call 555-0199"), wire.Value)

	out, err := message.Decode(wire)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestDecodeMissingIdentity(t *testing.T) {
	tests := []struct {
		name    string
		headers []kafka.Header
	}{
		{name: "no headers", headers: nil},
		{name: "missing log_id", headers: []kafka.Header{
			{Key: message.HeaderTenantID, Value: []byte("acme")},
		}},
		{name: "empty log_id", headers: []kafka.Header{
			{Key: message.HeaderTenantID, Value: []byte("acme")},
			{Key: message.HeaderLogID, Value: []byte("")},
		}},
		{name: "missing tenant_id", headers: []kafka.Header{
			{Key: message.HeaderLogID, Value: []byte("log-1")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := message.Decode(kafka.Message{Value: []byte("text"), Headers: tt.headers})
			require.ErrorIs(t, err, message.ErrMissingIdentity)
		})
	}
}

func TestDecodeDefaultsSourceToUnknown(t *testing.T) {
	out, err := message.Decode(kafka.Message{
		Value: []byte("text"),
		Headers: []kafka.Header{
			{Key: message.HeaderTenantID, Value: []byte("acme")},
			{Key: message.HeaderLogID, Value: []byte("log-1")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, models.SourceUnknown, out.Source)
}
