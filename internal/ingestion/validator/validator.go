// Package validator checks ingestion requests before they are published.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/ingestion"
)

const (
	maxFields        = 64
	maxDocumentBytes = 1 << 20
)

// ValidationError holds one message per offending request field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest requires a document id and between one and
// maxFields fields with valid names and non-blank text.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)
	if req.DocumentID == nil {
		errs["document_id"] = "document_id is required"
	}

	switch {
	case len(req.Fields) == 0:
		errs["fields"] = "at least one field is required"
	case len(req.Fields) > maxFields:
		errs["fields"] = fmt.Sprintf("at most %d fields are allowed", maxFields)
	}

	size := 0
	for name, text := range req.Fields {
		size += len(name) + len(text)
		if !index.ValidFieldName(name) {
			errs["fields."+name] = "field names use letters, digits, '_' and '-' only"
			continue
		}
		if strings.TrimSpace(text) == "" {
			errs["fields."+name] = "field text must not be blank"
		}
	}
	if size > maxDocumentBytes {
		errs["fields"] = fmt.Sprintf("document must be at most %d bytes", maxDocumentBytes)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
