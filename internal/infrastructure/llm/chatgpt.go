package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/ports"
)

// ChatGPTClient implements ports.VisionModel backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	model        string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.VisionModel = (*ChatGPTClient)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewChatGPTClient builds a client for an OpenAI-compatible chat model.
func NewChatGPTClient(model, systemPrompt string, timeout time.Duration) *ChatGPTClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatGPTClient{
		model:        model,
		systemPrompt: systemPrompt,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Name identifies the backend inside the registry.
func (c *ChatGPTClient) Name() string { return "openai" }

// Ask posts the prompt and a data-URL image as a single user message.
func (c *ChatGPTClient) Ask(ctx context.Context, req domain.VisionRequest) (string, error) {
	if c.model == "" {
		return "", fmt.Errorf("chatgpt client misconfigured")
	}

	body := map[string]any{
		"model": c.model,
		"messages": []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: []chatPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL(req.MIMEType, req.Data)}},
			}},
		},
	}

	headers := map[string]string{"Authorization": "Bearer " + req.APIKey}
	endpoint := strings.TrimRight(req.BaseURL, "/") + "/chat/completions"

	var out chatResponse
	if err := postJSON(ctx, c.httpClient, endpoint, headers, body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You classify images by art style and answer with a single word."
	}
	return prompt
}

func dataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}
