package ports

import (
	"context"
	"time"

	"GhibliScanner/internal/domain"
)

// SettingsStore is the typed key-value record shared across components.
type SettingsStore interface {
	Install(ctx context.Context, defaults domain.Settings) error
	Load(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error)
	SetEnabled(ctx context.Context, enabled bool) error
	IncrementProcessed(ctx context.Context) (int64, error)
	IncrementDownloaded(ctx context.Context) (int64, error)
}

// SettingsLoader reads the current settings record.
type SettingsLoader interface {
	Load(ctx context.Context) (domain.Settings, error)
}

// ProcessedCounter is the slice of the store the scanner needs.
type ProcessedCounter interface {
	IncrementProcessed(ctx context.Context) (int64, error)
}

// DownloadLedger is the slice of the store the downloader needs.
type DownloadLedger interface {
	SettingsLoader
	IncrementDownloaded(ctx context.Context) (int64, error)
}

// ImageFetcher reads raw image bytes and the reported content type.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// ImageProber reports intrinsic image dimensions without a full download.
type ImageProber interface {
	Probe(ctx context.Context, url string) (width, height int, err error)
}

// VisionModel asks a multimodal backend one question and returns its text answer.
type VisionModel interface {
	Name() string
	Ask(ctx context.Context, req domain.VisionRequest) (string, error)
}

// Classifier turns an image URL into a verdict; it never fails.
type Classifier interface {
	Classify(ctx context.Context, url string) domain.Verdict
}

// Downloader saves a matched image; it never fails.
type Downloader interface {
	Download(ctx context.Context, url string) domain.DownloadResult
}

// HostDownloader is the host download facility; it returns a download id.
type HostDownloader interface {
	Download(ctx context.Context, req domain.HostDownload) (string, error)
}

// CandidateHandler consumes candidate-found events.
type CandidateHandler interface {
	HandleCandidate(ctx context.Context, candidate domain.Candidate) domain.ProcessResult
}

// StatusListener receives enable-toggle notifications.
type StatusListener interface {
	OnStatusChange(enabled bool)
}

// Notifier announces downloaded matches on an outbound channel.
type Notifier interface {
	PublishMatch(ctx context.Context, candidate domain.Candidate, result domain.DownloadResult) error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
