package analysis

import (
	"context"
	"strings"
	"time"
)

type mockGenerator struct{}

func NewMockGenerator() Generator { return &mockGenerator{} }

func (m *mockGenerator) Generate(ctx context.Context, req Request) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	content := "[mock analysis for " + strings.TrimSpace(req.Prompt) + "]"
	return Result{
		Content: content,
		Model:   "mock",
		Latency: 20 * time.Millisecond,
	}, nil
}
