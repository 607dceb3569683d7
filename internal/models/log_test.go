package models_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aarush6848ddh/robust-data-processor/internal/models"
)

func TestDocumentIDIsTenantScoped(t *testing.T) {
	a := models.ProcessedRecord{TenantID: "t1", LogID: "log-1"}
	b := models.ProcessedRecord{TenantID: "t2", LogID: "log-1"}

	require.Equal(t, "t1:log-1", a.DocumentID())
	require.NotEqual(t, a.DocumentID(), b.DocumentID())
}

func TestDocumentIDIsStable(t *testing.T) {
	rec := models.ProcessedRecord{TenantID: "acme", LogID: "log-9"}
	require.Equal(t, rec.DocumentID(), rec.DocumentID())
}

func TestDocumentIDIsPathSafe(t *testing.T) {
	// Elasticsearch routes /{index}/_update/{id} by path segment, so the
	// ID must never carry a raw slash, whatever the caller put in the
	// tenant or log id.
	rec := models.ProcessedRecord{TenantID: "acme/eu", LogID: "2024/01/log"}
	require.NotContains(t, rec.DocumentID(), "/")
}

func TestDocumentIDSeparatorCannotAlias(t *testing.T) {
	a := models.ProcessedRecord{TenantID: "a:b", LogID: "c"}
	b := models.ProcessedRecord{TenantID: "a", LogID: "b:c"}
	require.NotEqual(t, a.DocumentID(), b.DocumentID())

	// Exactly one unescaped separator between the two components.
	require.Equal(t, 1, strings.Count(b.DocumentID(), ":"))
}
