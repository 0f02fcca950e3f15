package imaging

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"GhibliScanner/internal/ports"
)

// probeLimit bounds how much of an image is read to find its header.
const probeLimit = 512 << 10

// Prober reads just enough of an image to learn its intrinsic size.
type Prober struct {
	client *http.Client
}

var _ ports.ImageProber = (*Prober)(nil)

// NewProber wires an HTTP client; nil gets a 10s timeout default.
func NewProber(client *http.Client) *Prober {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Prober{client: client}
}

// Probe decodes the image header at url.
func (p *Prober) Probe(ctx context.Context, url string) (int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", probeLimit-1))

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("request image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, 0, fmt.Errorf("image returned %s", resp.Status)
	}

	return DecodeSize(io.LimitReader(resp.Body, probeLimit))
}

// DecodeSize returns the dimensions stored in an image header.
func DecodeSize(r io.Reader) (int, int, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
