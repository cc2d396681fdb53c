package model

import "errors"

// Failure taxonomy shared across the pipeline. Handlers wrap these with
// fmt.Errorf("%w: ...") so callers can branch with errors.Is.
var (
	// ErrInvalidInput marks bad caller input (empty topic, malformed
	// document). Always fatal, rejected before any state is created.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderFailure marks search provider errors that survived the
	// retry/fallback ladder. The workflow degrades to partial results.
	ErrProviderFailure = errors.New("provider failure")

	// ErrExtractionSchema marks LLM output that could not be parsed into
	// the graph schema after all retries.
	ErrExtractionSchema = errors.New("extraction schema failure")

	// ErrGraphConsistency marks a merge that would break referential
	// integrity or the JSON round-trip. The fragment is dropped, not the
	// graph.
	ErrGraphConsistency = errors.New("graph consistency failure")

	// ErrStateCorruption marks a persisted snapshot that fails validation
	// on load. Always fatal.
	ErrStateCorruption = errors.New("state corruption")
)
