package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/ports"
)

// ImageDownloader hands matched images to the host download facility.
type ImageDownloader struct {
	ledger ports.DownloadLedger
	host   ports.HostDownloader
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.Downloader = (*ImageDownloader)(nil)

// NewImageDownloader wires the downloader.
func NewImageDownloader(ledger ports.DownloadLedger, host ports.HostDownloader, logger *slog.Logger) *ImageDownloader {
	return &ImageDownloader{ledger: ledger, host: host, now: time.Now, logger: logger}
}

// Download never fails: host errors are reported through the result.
func (d *ImageDownloader) Download(ctx context.Context, url string) domain.DownloadResult {
	downloadPath := domain.DefaultDownloadPath
	if d.ledger != nil {
		settings, err := d.ledger.Load(ctx)
		if err != nil {
			d.debug("load settings", "error", err)
		} else if settings.DownloadPath != "" {
			downloadPath = settings.DownloadPath
		}
	}

	filename := buildFilename(downloadPath, d.now())
	if d.host == nil {
		return domain.DownloadResult{Success: false, Filename: filename, Error: "download facility unavailable"}
	}

	id, err := d.host.Download(ctx, domain.HostDownload{URL: url, Filename: filename, SaveAs: false})
	if err != nil {
		d.debug("download failed", "url", url, "error", err)
		return domain.DownloadResult{Success: false, Filename: filename, Error: err.Error()}
	}

	if d.ledger != nil {
		if _, err := d.ledger.IncrementDownloaded(ctx); err != nil {
			d.debug("increment downloaded", "error", err)
		}
	}

	d.debug("image saved", "url", url, "filename", filename, "id", id)
	return domain.DownloadResult{Success: true, Filename: filename, ID: id}
}

func buildFilename(downloadPath string, at time.Time) string {
	tag := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s/%d_ghibli_image_%s.jpg", strings.TrimRight(downloadPath, "/"), at.UnixMilli(), tag)
}

func (d *ImageDownloader) debug(msg string, args ...interface{}) {
	if d.logger == nil {
		return
	}
	d.logger.Debug(msg, args...)
}
