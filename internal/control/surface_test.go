package control

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/infrastructure/storage"
)

type recordingListener struct {
	mu     sync.Mutex
	events []bool
}

func (l *recordingListener) OnStatusChange(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, enabled)
}

func (l *recordingListener) all() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.events...)
}

func newSurface(t *testing.T) (*Surface, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Install(context.Background(), domain.DefaultSettings()))
	return NewSurface(store, nil), store
}

func TestSetEnabledPersistsAndNotifies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	surface, store := newSurface(t)
	listener := &recordingListener{}
	unsubscribe := surface.Subscribe(listener)

	require.NoError(t, surface.SetEnabled(ctx, false))

	settings, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, settings.Enabled)
	assert.Equal(t, []bool{false}, listener.all())

	unsubscribe()
	require.NoError(t, surface.SetEnabled(ctx, true))
	assert.Equal(t, []bool{false}, listener.all())
}

func TestSyncNotifiesOnlyOnChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	surface, store := newSurface(t)
	listener := &recordingListener{}
	surface.Subscribe(listener)

	require.NoError(t, surface.Sync(ctx))
	require.NoError(t, surface.Sync(ctx))
	assert.Equal(t, []bool{true}, listener.all())

	require.NoError(t, store.SetEnabled(ctx, false))
	require.NoError(t, surface.Sync(ctx))
	assert.Equal(t, []bool{true, false}, listener.all())
}

func TestSaveSettingsWritesAllFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	surface, store := newSurface(t)

	saved, err := surface.SaveSettings(ctx, Form{
		APIKey:              "key-123",
		APIBaseURL:          "https://llm.example.org/v1/",
		DownloadPath:        "Totoro",
		ConfidenceThreshold: "0.75 please",
	})
	require.NoError(t, err)
	assert.Equal(t, "key-123", saved.APIKey)
	assert.Equal(t, "https://llm.example.org/v1/", saved.APIBaseURL)
	assert.Equal(t, "Totoro", saved.DownloadPath)
	assert.Equal(t, 0.75, saved.ConfidenceThreshold)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
	assert.True(t, loaded.Enabled, "save must not touch the toggle")
}

func TestSaveSettingsKeepsUnparsableThresholdAsNaN(t *testing.T) {
	t.Parallel()

	surface, _ := newSurface(t)
	saved, err := surface.SaveSettings(context.Background(), Form{ConfidenceThreshold: "high"})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(saved.ConfidenceThreshold))
}

func TestSaveSettingsPrefersParsedThreshold(t *testing.T) {
	t.Parallel()

	surface, _ := newSurface(t)
	inf := math.Inf(1)
	saved, err := surface.SaveSettings(context.Background(), Form{ConfidenceThreshold: "+Inf", Threshold: &inf})
	require.NoError(t, err)
	assert.True(t, math.IsInf(saved.ConfidenceThreshold, 1))
}

func TestSaveLabelRevertsAfterTwoSeconds(t *testing.T) {
	t.Parallel()

	surface, _ := newSurface(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	surface.now = func() time.Time { return base }

	assert.Equal(t, LabelSave, surface.SaveLabel(base))

	_, err := surface.SaveSettings(context.Background(), Form{ConfidenceThreshold: "0.7"})
	require.NoError(t, err)

	assert.Equal(t, LabelSaved, surface.SaveLabel(base))
	assert.Equal(t, LabelSaved, surface.SaveLabel(base.Add(1999*time.Millisecond)))
	assert.Equal(t, LabelSave, surface.SaveLabel(base.Add(2*time.Second)))

	view, err := surface.SettingsView(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LabelSaved, view.SaveLabel)
}

func TestMainViewReflectsCounters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	surface, store := newSurface(t)
	_, _ = store.IncrementProcessed(ctx)
	_, _ = store.IncrementProcessed(ctx)
	_, _ = store.IncrementDownloaded(ctx)

	view, err := surface.MainView(ctx)
	require.NoError(t, err)
	assert.True(t, view.Enabled)
	assert.Equal(t, domain.Stats{Processed: 2, Downloaded: 1}, view.Stats)
}

func TestPollStatsDeliversUntilCancelled(t *testing.T) {
	t.Parallel()

	surface, store := newSurface(t)
	_, _ = store.IncrementProcessed(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan domain.Stats, 8)
	done := make(chan error, 1)
	go func() {
		done <- surface.PollStats(ctx, 10*time.Millisecond, func(s domain.Stats) {
			select {
			case got <- s:
			default:
			}
		})
	}()

	select {
	case stats := <-got:
		assert.Equal(t, int64(1), stats.Processed)
	case <-time.After(2 * time.Second):
		t.Fatal("no stats delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("PollStats did not return after cancel")
	}
}

func TestParseThreshold(t *testing.T) {
	t.Parallel()

	cases := map[string]float64{
		"0.7":      0.7,
		"  0.9":    0.9,
		".5":       0.5,
		"1e-1x":    0.1,
		"-3":       -3,
		"80%":      80,
		"Infinity": math.Inf(1),
		"1.":       1,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseThreshold(in), "input %q", in)
	}

	for _, in := range []string{"", "abc", "   ", "."} {
		assert.True(t, math.IsNaN(ParseThreshold(in)), "input %q", in)
	}
}
