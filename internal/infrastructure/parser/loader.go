package parser

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "GhibliScanner/1.0"

// Loader downloads pages and parses them into documents.
type Loader struct {
	client *http.Client
}

// NewLoader wires an HTTP client; a nil client gets a 20s timeout default.
func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Loader{client: client}
}

// Load fetches pageURL and returns a live document.
func (l *Loader) Load(ctx context.Context, pageURL string) (*Document, error) {
	doc, err := l.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return NewDocument(doc, pageURL), nil
}

// Snapshot fetches pageURL as a plain goquery document.
func (l *Loader) Snapshot(ctx context.Context, pageURL string) (*goquery.Document, error) {
	return l.fetchDocument(ctx, pageURL)
}

func (l *Loader) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page %s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}
