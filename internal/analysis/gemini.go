package analysis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/anant5441/medvoice/internal/config"
	"google.golang.org/genai"
)

// geminiGenerator calls the hosted Gemini API. Keys are read from the process
// environment on every call and rotated when a key runs into its quota. One
// generator is shared by all in-flight analyses, so the rotation index is
// guarded by a mutex.
type geminiGenerator struct {
	cfg config.AnalysisConfig

	mu         sync.Mutex
	currentKey int
}

func NewGeminiGenerator(cfg config.AnalysisConfig) Generator {
	return &geminiGenerator{cfg: cfg}
}

func (g *geminiGenerator) apiKeys() []string {
	raw := os.Getenv(g.cfg.APIKeyEnv)
	var keys []string
	for _, part := range strings.Split(raw, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func (g *geminiGenerator) Generate(ctx context.Context, req Request) (Result, error) {
	keys := g.apiKeys()
	if len(keys) == 0 {
		return Result{}, fmt.Errorf("no API key in environment variable %s", g.cfg.APIKeyEnv)
	}

	genCfg := &genai.GenerateContentConfig{}
	if g.cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(g.cfg.MaxTokens)
	}
	if g.cfg.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(g.cfg.Temperature))
	}

	start := time.Now()
	var lastErr error
	for range keys {
		key := g.keyFor(keys)

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			lastErr = fmt.Errorf("create client: %w", err)
			g.rotateKey(len(keys))
			continue
		}

		result, err := client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(req.Prompt), genCfg)
		if err != nil {
			if isQuotaError(err) {
				lastErr = err
				g.rotateKey(len(keys))
				continue
			}
			return Result{}, fmt.Errorf("generate content: %w", err)
		}

		if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			return Result{}, fmt.Errorf("empty response from Gemini")
		}
		var text strings.Builder
		for _, part := range result.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
		return Result{
			Content: text.String(),
			Model:   g.cfg.Model,
			Latency: time.Since(start),
		}, nil
	}

	return Result{}, fmt.Errorf("all API keys exhausted: %w", lastErr)
}

func (g *geminiGenerator) keyFor(keys []string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return keys[g.currentKey%len(keys)]
}

func (g *geminiGenerator) rotateKey(n int) {
	g.mu.Lock()
	g.currentKey = (g.currentKey + 1) % n
	g.mu.Unlock()
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
