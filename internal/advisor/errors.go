package advisor

import "errors"

var (
	// ErrClassification covers unreachable, timed-out or invalid classifier calls.
	ErrClassification = errors.New("classification failure")
	// ErrExtractionParse is returned when extraction output cannot be parsed.
	ErrExtractionParse = errors.New("extraction parse failure")
	// ErrRetrieval covers retrieval backend failures.
	ErrRetrieval = errors.New("retrieval failure")
	// ErrToolInvocation is returned when a mutator's preconditions are unmet.
	ErrToolInvocation = errors.New("tool invocation failure")
	// ErrResponse is returned when the response oracle fails.
	ErrResponse = errors.New("response generation failure")
	// ErrMissingOracle is returned by New when a required oracle is nil.
	ErrMissingOracle = errors.New("required oracle not configured")
	// ErrEmptySessionID is returned when a turn has no session id.
	ErrEmptySessionID = errors.New("session id is required")
)

// FallbackReply is returned to the caller when the response oracle fails.
const FallbackReply = "I'm sorry, I ran into a problem while putting together a response. Please try again in a moment."
