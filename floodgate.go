package floodgate

import (
	"github.com/yourusername/floodgate/middleware"
)

// Re-export main types for convenience
type (
	Gate      = middleware.Gate
	Option    = middleware.Option
	Rejection = middleware.Rejection
)

// NewGate creates a new request gate
var NewGate = middleware.NewGate
