package cli

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GhibliScanner/internal/control"
	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/infrastructure/storage"
)

type FakeService struct {
	store         *storage.MemoryStore
	surface       *control.Surface
	ScanPagesFunc func(ctx context.Context, urls []string) ([]domain.PageReport, error)
	WatchFunc     func(ctx context.Context, pageURL string) error
	closed        int
}

func newFakeService(t *testing.T) *FakeService {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Install(context.Background(), domain.DefaultSettings()))
	return &FakeService{store: store, surface: control.NewSurface(store, nil)}
}

func (f *FakeService) Surface() *control.Surface { return f.surface }

func (f *FakeService) ScanPages(ctx context.Context, urls []string) ([]domain.PageReport, error) {
	if f.ScanPagesFunc != nil {
		return f.ScanPagesFunc(ctx, urls)
	}
	return nil, nil
}

func (f *FakeService) Watch(ctx context.Context, pageURL string) error {
	if f.WatchFunc != nil {
		return f.WatchFunc(ctx, pageURL)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *FakeService) StatsInterval() time.Duration { return 10 * time.Millisecond }

func (f *FakeService) Close() error {
	f.closed++
	return nil
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	info, success, warning := pterm.Info, pterm.Success, pterm.Warning

	pterm.SetDefaultOutput(&buf)
	pterm.Info = *info.WithWriter(&buf)
	pterm.Success = *success.WithWriter(&buf)
	pterm.Warning = *warning.WithWriter(&buf)
	pterm.DisableStyling()
	t.Cleanup(func() {
		pterm.SetDefaultOutput(os.Stdout)
		pterm.Info, pterm.Success, pterm.Warning = info, success, warning
		pterm.EnableStyling()
	})
	return &buf
}

func execute(t *testing.T, svc *FakeService, args ...string) error {
	t.Helper()
	root := NewRootCommand(func(context.Context) (Service, error) { return svc, nil })
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestScanPrintsReportAndCounters(t *testing.T) {
	buf := captureOutput(t)

	svc := newFakeService(t)
	svc.ScanPagesFunc = func(ctx context.Context, urls []string) ([]domain.PageReport, error) {
		_, _ = svc.store.IncrementProcessed(ctx)
		_, _ = svc.store.IncrementDownloaded(ctx)
		return []domain.PageReport{
			{URL: urls[0], Images: 3, Candidates: 1},
			{URL: "https://down.example.org/", Error: "status 503"},
		}, nil
	}

	err := ScannerCmd{svc: svc}.Scan(context.Background(), ScanInput{URLs: []string{"https://example.org/gallery"}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "https://example.org/gallery")
	assert.Contains(t, out, "status 503")
	assert.Contains(t, out, "Processed 1, downloaded 1")
}

func TestScanJSONOutput(t *testing.T) {
	buf := captureOutput(t)

	svc := newFakeService(t)
	svc.ScanPagesFunc = func(context.Context, []string) ([]domain.PageReport, error) {
		return []domain.PageReport{{URL: "https://example.org/", Images: 2}}, nil
	}

	require.NoError(t, ScannerCmd{svc: svc}.Scan(context.Background(), ScanInput{Output: "json"}))
	assert.Contains(t, buf.String(), `"url": "https://example.org/"`)
	assert.Contains(t, buf.String(), `"processed": 0`)
}

func TestScanPropagatesErrors(t *testing.T) {
	captureOutput(t)

	svc := newFakeService(t)
	svc.ScanPagesFunc = func(context.Context, []string) ([]domain.PageReport, error) {
		return nil, errors.New("no pages")
	}
	err := ScannerCmd{svc: svc}.Scan(context.Background(), ScanInput{})
	assert.EqualError(t, err, "no pages")

	err = ScannerCmd{svc: svc}.Scan(context.Background(), ScanInput{Output: "yaml"})
	assert.Error(t, err)
}

func TestDisableCommandPersistsAndClosesService(t *testing.T) {
	buf := captureOutput(t)
	svc := newFakeService(t)

	require.NoError(t, execute(t, svc, "disable"))

	settings, err := svc.store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, settings.Enabled)
	assert.Equal(t, 1, svc.closed)
	assert.Contains(t, buf.String(), "Scanner disabled")

	buf.Reset()
	require.NoError(t, execute(t, svc, "status"))
	assert.Contains(t, buf.String(), "Scanner: disabled")
	assert.Contains(t, buf.String(), "Images processed: 0")
}

func TestStatusFollowStopsWithContext(t *testing.T) {
	buf := captureOutput(t)
	svc := newFakeService(t)
	_, _ = svc.store.IncrementProcessed(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	err := ScannerCmd{svc: svc}.Status(ctx, StatusInput{Follow: true})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, strings.Count(buf.String(), "Images processed: 1"), 2)
}

func TestSettingsSetKeepsUnchangedFields(t *testing.T) {
	buf := captureOutput(t)
	svc := newFakeService(t)

	require.NoError(t, execute(t, svc, "settings", "set", "--api-key", "abcd1234efgh5678", "--download-path", "Spirited"))
	assert.Contains(t, buf.String(), control.LabelSaved)

	require.NoError(t, execute(t, svc, "settings", "set", "--threshold", "0.9"))

	settings, err := svc.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abcd1234efgh5678", settings.APIKey)
	assert.Equal(t, "Spirited", settings.DownloadPath)
	assert.Equal(t, domain.DefaultAPIBaseURL, settings.APIBaseURL)
	assert.Equal(t, 0.9, settings.ConfidenceThreshold)

	buf.Reset()
	require.NoError(t, execute(t, svc, "settings", "show"))
	out := buf.String()
	assert.Contains(t, out, "abcd********5678")
	assert.NotContains(t, out, "abcd1234efgh5678")
	assert.Contains(t, out, "rejects every image")
}

func TestSettingsSetKeepsInfiniteThreshold(t *testing.T) {
	buf := captureOutput(t)
	svc := newFakeService(t)

	require.NoError(t, execute(t, svc, "settings", "set", "--threshold", "Infinity"))
	require.NoError(t, execute(t, svc, "settings", "set", "--api-key", "k"))

	settings, err := svc.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k", settings.APIKey)
	assert.True(t, math.IsInf(settings.ConfidenceThreshold, 1), "threshold = %v", settings.ConfidenceThreshold)
	assert.NotContains(t, buf.String(), "not a number")
}

func TestSettingsSetKeepsUnparsableThresholdQuietly(t *testing.T) {
	buf := captureOutput(t)
	svc := newFakeService(t)

	require.NoError(t, execute(t, svc, "settings", "set", "--threshold", "often"))
	buf.Reset()
	require.NoError(t, execute(t, svc, "settings", "set", "--download-path", "Totoro"))

	settings, err := svc.store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, math.IsNaN(settings.ConfidenceThreshold))
	assert.Equal(t, "Totoro", settings.DownloadPath)
	assert.NotContains(t, buf.String(), "not a number")
}

func TestSettingsShowJSONWithUnparsableThreshold(t *testing.T) {
	buf := captureOutput(t)
	svc := newFakeService(t)

	require.NoError(t, execute(t, svc, "settings", "set", "--threshold", "often"))
	assert.Contains(t, buf.String(), "not a number")

	buf.Reset()
	require.NoError(t, execute(t, svc, "settings", "show", "-o", "json", "--reveal"))
	assert.Contains(t, buf.String(), `"confidenceThreshold": 0.7`)
}

func TestWatchTreatsCancellationAsCleanExit(t *testing.T) {
	buf := captureOutput(t)
	svc := newFakeService(t)

	ctx, cancel := context.WithCancel(context.Background())
	svc.WatchFunc = func(ctx context.Context, pageURL string) error {
		assert.Equal(t, "https://example.org/feed", pageURL)
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}

	require.NoError(t, ScannerCmd{svc: svc}.Watch(ctx, WatchInput{URL: "https://example.org/feed"}))
	assert.Contains(t, buf.String(), "Stopped.")
}

func TestWatchRequiresURL(t *testing.T) {
	captureOutput(t)
	assert.Error(t, execute(t, newFakeService(t), "watch"))
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", maskKey(""))
	assert.Equal(t, "*****", maskKey("short"))
	assert.Equal(t, "abcd****wxyz", maskKey("abcd1234wxyz"))
}
