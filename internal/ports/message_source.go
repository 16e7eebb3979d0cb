package ports

// MessageSource defines the interface for a message ingestion listener
type MessageSource interface {
	// Start starts the ingestion listener
	Start() error

	// Stop stops the ingestion listener
	Stop() error
}
