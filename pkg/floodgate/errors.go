package floodgate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidKey is returned when a cache or rate limit key is empty
	ErrInvalidKey = errors.New("key cannot be empty")

	// ErrKeyExtractionFailed is returned when key extraction from request fails
	ErrKeyExtractionFailed = errors.New("failed to extract key from request")
)

// ErrorKind classifies an upstream failure.
type ErrorKind int

const (
	// KindHard is any upstream failure that must be surfaced immediately.
	KindHard ErrorKind = iota

	// KindThrottled means the upstream signaled rate limiting or quota
	// exhaustion. FetchPolicy recovers from these with a stale read when
	// a previous value exists.
	KindThrottled
)

func (k ErrorKind) String() string {
	if k == KindThrottled {
		return "throttled"
	}
	return "hard"
}

// UpstreamError is a classified failure from an upstream fetch.
type UpstreamError struct {
	Kind    ErrorKind
	Message string
	Err     error // optional underlying error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Throttled builds a throttled UpstreamError.
func Throttled(message string, err error) *UpstreamError {
	return &UpstreamError{Kind: KindThrottled, Message: message, Err: err}
}

// Hard builds a hard UpstreamError.
func Hard(message string, err error) *UpstreamError {
	return &UpstreamError{Kind: KindHard, Message: message, Err: err}
}

// Classify maps an arbitrary error to an ErrorKind. A typed *UpstreamError
// keeps its own kind. Anything else is classified by message: the markers
// below are how the spreadsheet and LLM upstreams word their rate-limit
// responses, and the matching must stay exactly this way for compatibility.
func Classify(err error) ErrorKind {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}

	msg := err.Error()
	if strings.Contains(msg, "429") ||
		strings.Contains(msg, "Quota exceeded") ||
		strings.Contains(strings.ToLower(msg), "rate limit") {
		return KindThrottled
	}
	return KindHard
}

// IsThrottled reports whether err classifies as an upstream throttle.
func IsThrottled(err error) bool {
	return err != nil && Classify(err) == KindThrottled
}
