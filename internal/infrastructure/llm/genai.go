package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/ports"
)

// GenAIClient asks Gemini through the official SDK. The SDK talks to its own
// endpoint, so the configured API base URL is not used.
type GenAIClient struct {
	model string

	mu     sync.Mutex
	key    string
	client *genai.Client
}

var _ ports.VisionModel = (*GenAIClient)(nil)

// NewGenAIClient builds an SDK-backed client for model.
func NewGenAIClient(model string) *GenAIClient {
	return &GenAIClient{model: model}
}

// Name identifies the backend inside the registry.
func (g *GenAIClient) Name() string { return "genai" }

// Ask sends the prompt and raw image bytes as one request.
func (g *GenAIClient) Ask(ctx context.Context, req domain.VisionRequest) (string, error) {
	cl, err := g.clientFor(ctx, req.APIKey)
	if err != nil {
		return "", err
	}

	m := cl.GenerativeModel(g.model)
	if m == nil {
		return "", fmt.Errorf("genai: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{Temperature: ptrFloat32(0)}

	resp, err := m.GenerateContent(ctx,
		genai.Text(req.Prompt),
		&genai.Blob{MIMEType: req.MIMEType, Data: req.Image},
	)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	return firstText(resp), nil
}

// Close releases the SDK client, if one was opened.
func (g *GenAIClient) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closeLocked()
}

// clientFor reuses the SDK client until the API key changes.
func (g *GenAIClient) clientFor(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil && g.key == apiKey {
		return g.client, nil
	}
	if err := g.closeLocked(); err != nil {
		return nil, fmt.Errorf("genai close: %w", err)
	}

	cl, err := genai.NewClient(context.WithoutCancel(ctx), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	g.client, g.key = cl, apiKey
	return cl, nil
}

func (g *GenAIClient) closeLocked() error {
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client, g.key = nil, ""
	return err
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
