package config

const (
	// TopicIngestFile carries file paths to be ingested by the worker.
	TopicIngestFile = "ingest.file"

	// TopicDocumentIngested announces documents that finished ingestion.
	TopicDocumentIngested = "document.ingested"

	// ChannelIngestWorker is the consumer channel of the ingest worker.
	ChannelIngestWorker = "docqa"
)
