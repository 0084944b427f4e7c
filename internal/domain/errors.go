package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload is returned when the rail feed cannot be repaired into a journey list
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrExtraction is returned when the bus board markup lacks the expected row structure
	ErrExtraction = errors.New("extraction failed")
	// ErrUpstreamFetch wraps network and HTTP status failures of an upstream request
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	// ErrParse is returned for clock strings that are not numeric HH:MM
	ErrParse = errors.New("parse error")
)

// SourceError ties a failure to the upstream source it came from
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
