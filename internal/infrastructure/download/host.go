package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/ports"
)

// FileHost is the host download facility: it saves URLs below a root directory.
type FileHost struct {
	root   string
	client *http.Client
}

var _ ports.HostDownloader = (*FileHost)(nil)

// NewFileHost binds downloads to root; a nil client gets a 60s timeout default.
func NewFileHost(root string, client *http.Client) *FileHost {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &FileHost{root: root, client: client}
}

// Root returns the directory downloads are saved under.
func (h *FileHost) Root() string {
	return h.root
}

// Download fetches req.URL into root/req.Filename and returns a download id.
func (h *FileHost) Download(ctx context.Context, req domain.HostDownload) (string, error) {
	if req.SaveAs {
		return "", &domain.HostError{Op: "prompt", Err: errors.New("interactive save dialog is not supported")}
	}

	target, err := h.resolve(req.Filename)
	if err != nil {
		return "", &domain.HostError{Op: "resolve", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", &domain.HostError{Op: "request", Err: err}
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", &domain.HostError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.HostError{Op: "fetch", Err: fmt.Errorf("server returned %s", resp.Status)}
	}

	if err := writeFile(target, resp.Body); err != nil {
		return "", &domain.HostError{Op: "write", Err: err}
	}

	return uuid.NewString(), nil
}

func (h *FileHost) resolve(filename string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(filename)))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filepath.Join(h.root, clean), nil
}

func writeFile(target string, body io.Reader) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("copy body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), target)
}
