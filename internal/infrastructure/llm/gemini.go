package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/ports"
)

// GeminiClient calls the generateContent REST method with an inline image.
type GeminiClient struct {
	model      string
	httpClient *http.Client
}

var _ ports.VisionModel = (*GeminiClient)(nil)

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// NewGeminiClient builds a client for model, e.g. "gemini-2.0-flash".
func NewGeminiClient(model string, timeout time.Duration) *GeminiClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiClient{
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies the backend inside the registry.
func (g *GeminiClient) Name() string { return "gemini" }

// Endpoint is {baseURL}{model}:generateContent?key={apiKey}.
func (g *GeminiClient) Endpoint(baseURL, apiKey string) string {
	return fmt.Sprintf("%s%s:generateContent?key=%s", baseURL, g.model, url.QueryEscape(apiKey))
}

// Ask returns the first text part of the first candidate, or "" when absent.
func (g *GeminiClient) Ask(ctx context.Context, req domain.VisionRequest) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: req.Prompt},
				{InlineData: &geminiInlineData{MimeType: req.MIMEType, Data: req.Data}},
			},
		}},
	}

	var out geminiResponse
	if err := postJSON(ctx, g.httpClient, g.Endpoint(req.BaseURL, req.APIKey), nil, body, &out); err != nil {
		return "", err
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
