package errors

import (
	"errors"
	"fmt"
)

// Sentinel values so callers can test with errors.Is without holding the
// concrete type.
var (
	ErrNormalization = errors.New("table has no recognizable schema")
	ErrNoData        = errors.New("no bid data available")
)

// NormalizationError reports that a raw table exposed zero columns mapping
// to any canonical field, even fuzzily. The source is skipped and the run
// continues; it never aborts a run on its own.
type NormalizationError struct {
	SourceName string
	Headers    []string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization failed for source %q: no recognizable columns in %v", e.SourceName, e.Headers)
}

func (e *NormalizationError) Is(target error) bool {
	return target == ErrNormalization
}

// NoDataError is surfaced when every configured source and the fallback
// feed yielded zero rows. Callers present it as an empty-state message,
// not a crash.
type NoDataError struct {
	SourcesTried int
	FallbackUsed bool
}

func (e *NoDataError) Error() string {
	if e.FallbackUsed {
		return fmt.Sprintf("no bids available: %d sources and the fallback feed returned no rows", e.SourcesTried)
	}
	return fmt.Sprintf("no bids available: all %d sources returned no rows", e.SourcesTried)
}

func (e *NoDataError) Is(target error) bool {
	return target == ErrNoData
}
