package worker

// IngestFilePayload asks the ingest worker to ingest a file that is
// already on the server's disk.
type IngestFilePayload struct {
	Path          string `json:"path"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// DocumentIngestedEvent is published after a document has been chunked and
// stored.
type DocumentIngestedEvent struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	Path          string `json:"path"`
	ChunkCount    int    `json:"chunk_count"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
