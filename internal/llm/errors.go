package llm

import "fmt"

// ConfigurationError indicates a missing or unusable completion-service
// credential. It is fatal and never retried.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// ParseError indicates the model output never produced a
// schema-conformant recipe, even after the retry. It is fatal for the
// URL being ingested but must not abort a batch.
type ParseError struct {
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("parse error: %s", e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Err }
