package domain

import "fmt"

// ParseError reports an unreadable or empty source document. It is fatal for
// the ingestion request; there is no partial-document fallback.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse %s: unreadable document", e.Filename)
	}
	return fmt.Sprintf("parse %s: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports malformed arguments, e.g. mismatched chunk/vector
// counts or an empty required identifier.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// StorageError reports that the vector index was unavailable or rejected a
// request. It is surfaced to the caller without internal retries.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("vector store %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// RetrievalError wraps a failed search, keeping the query for reporting.
type RetrievalError struct {
	Query string
	Err   error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("search %q: %v", e.Query, e.Err) }

func (e *RetrievalError) Unwrap() error { return e.Err }

// ConfigurationError reports invalid configuration. It fails fast at
// construction time, never at request time.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return "config: " + e.Msg }

// Configf builds a ConfigurationError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}
