// Package ingestion defines the document ingestion API and the event
// schema the indexer consumes.
package ingestion

// IngestRequest is the JSON body of POST /api/v1/documents. DocumentID is a
// pointer so that a missing id can be told apart from id 0.
type IngestRequest struct {
	DocumentID *uint64           `json:"document_id"`
	Fields     map[string]string `json:"fields"`
}

// IngestResponse acknowledges an accepted request. The document becomes
// searchable once the indexer has flushed it.
type IngestResponse struct {
	DocumentID uint64 `json:"document_id"`
	Status     string `json:"status"`
}

// IndexEvent is the value of a document-ingest message. Delete events carry
// no fields.
type IndexEvent struct {
	DocumentID uint64            `json:"document_id"`
	Fields     map[string]string `json:"fields,omitempty"`
	Delete     bool              `json:"delete,omitempty"`
}
