package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/ports"
)

const defaultEndpoint = "https://api.telegram.org"

// Notifier posts downloaded matches to a Telegram chat via bot API.
type Notifier struct {
	endpoint string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier; endpoint may be empty.
func NewNotifier(endpoint, botToken, chatID string) *Notifier {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Notifier{
		endpoint: strings.TrimRight(endpoint, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PublishMatch sends a short message describing the saved image.
func (n *Notifier) PublishMatch(ctx context.Context, candidate domain.Candidate, result domain.DownloadResult) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.endpoint, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", formatMatch(candidate, result))
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

func formatMatch(c domain.Candidate, r domain.DownloadResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Saved %s\n", r.Filename)
	fmt.Fprintf(&b, "Image: %s (%dx%d)\n", c.URL, c.Width, c.Height)
	if c.AltText != "" {
		fmt.Fprintf(&b, "Alt: %s\n", c.AltText)
	}
	if c.PageURL != "" {
		fmt.Fprintf(&b, "Page: %s\n", c.PageURL)
	}
	return strings.TrimSpace(b.String())
}
