package normalize

import (
	"encoding/json"
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aarush6848ddh/robust-data-processor/internal/models"
)

// ValidationError marks an input the caller must fix; it is never retried.
type ValidationError struct {
	Message string
	Status  int
}

func (e *ValidationError) Error() string {
	return e.Message
}

func badRequest(msg string) *ValidationError {
	return &ValidationError{Message: msg, Status: http.StatusBadRequest}
}

// FromJSON normalizes an application/json body.
//
// Expected shape:
//
//	{"tenant_id": "acme", "log_id": "optional", "text": "User 555-0199 accessed..."}
//
// log_id is generated when absent or empty; tenant_id and text are required
// string fields.
func FromJSON(body []byte) (models.NormalizedMessage, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return models.NormalizedMessage{}, badRequest("Invalid JSON body")
	}

	tenantID, ok := raw["tenant_id"].(string)
	if !ok || tenantID == "" {
		return models.NormalizedMessage{}, badRequest("Field 'tenant_id' is required and must be a string")
	}

	text, ok := raw["text"].(string)
	if !ok || text == "" {
		return models.NormalizedMessage{}, badRequest("Field 'text' is required and must be a string")
	}

	logID, _ := raw["log_id"].(string)
	if logID == "" {
		logID = uuid.NewString()
	}

	return models.NormalizedMessage{
		TenantID: tenantID,
		LogID:    logID,
		Text:     text,
		Source:   models.SourceJSONUpload,
	}, nil
}

// FromText normalizes a text/plain body. The tenant comes out-of-band (the
// X-Tenant-ID header) and the log_id is always freshly generated; callers
// cannot supply their own on this path.
func FromText(body []byte, tenantID string) (models.NormalizedMessage, error) {
	if tenantID == "" {
		return models.NormalizedMessage{}, badRequest("Header 'X-Tenant-ID' is required for text/plain payloads")
	}

	if !utf8.Valid(body) {
		return models.NormalizedMessage{}, badRequest("Request body must be valid UTF-8")
	}

	return models.NormalizedMessage{
		TenantID: tenantID,
		LogID:    uuid.NewString(),
		Text:     string(body),
		Source:   models.SourceTextUpload,
	}, nil
}
