package ingest

type Status int

const (
	StatusOK Status = iota
	StatusNotImplemented
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotImplemented:
		return "not_implemented"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Result is the outcome of an ingestion request. DocumentID is only set
// when Status is StatusOK.
type Result struct {
	Status     Status
	DocumentID string
	ChunkCount int
	Reason     string
}

func OK(docID string, chunks int) Result {
	return Result{Status: StatusOK, DocumentID: docID, ChunkCount: chunks}
}

func NotImplemented() Result {
	return Result{Status: StatusNotImplemented, Reason: "not implemented"}
}

func Failed(err error) Result {
	return Result{Status: StatusFailed, Reason: err.Error()}
}
