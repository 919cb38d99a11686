package analysis

import (
	"context"
	"time"
)

// Request describes one generation call.
type Request struct {
	SessionID string
	Prompt    string
}

// Result carries the model output verbatim.
type Result struct {
	Content string
	Model   string
	Latency time.Duration
}

// Generator defines a pluggable text-generation backend.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
