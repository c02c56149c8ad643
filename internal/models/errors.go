package models

import "fmt"

// FetchError marks a document that could not be retrieved or parsed. The
// ingestion pipeline skips the document and continues the batch.
type FetchError struct {
	Identifier string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Identifier, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ProviderError marks a failed embedding or model call. The current item is
// aborted and the error surfaces to the caller as retryable.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ValidationError rejects malformed input before any retrieval work begins.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
