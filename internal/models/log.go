package models

import (
	"net/url"
	"time"
)

// Source values recorded on every message to mark provenance.
const (
	SourceJSONUpload = "json_upload"
	SourceTextUpload = "text_upload"
	SourceUnknown    = "unknown"
)

// NormalizedMessage is the canonical unit flowing through the pipeline:
// the flat text payload plus the identity attributes carried alongside it.
type NormalizedMessage struct {
	TenantID string `json:"tenant_id"`
	LogID    string `json:"log_id"`
	Text     string `json:"text"`
	Source   string `json:"source"`
}

// ProcessedRecord is the document persisted after the worker has run.
type ProcessedRecord struct {
	TenantID     string    `json:"tenant_id"`
	LogID        string    `json:"log_id"`
	Source       string    `json:"source"`
	OriginalText string    `json:"original_text"`
	ModifiedData string    `json:"modified_data"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// DocumentID returns the tenant-scoped storage key. Keeping tenant_id inside
// the key means records for different tenants can never collide, and reusing
// the same key on redelivery makes the write idempotent. Both components are
// escaped before joining: the ID never contains a slash (Elasticsearch routes
// /{index}/_update/{id} by path segment) and a tenant or log id containing
// the separator cannot alias another key.
func (r ProcessedRecord) DocumentID() string {
	return url.QueryEscape(r.TenantID) + ":" + url.QueryEscape(r.LogID)
}
