package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/infrastructure/scheduler"
	"GhibliScanner/internal/ports"
)

const (
	LabelSave  = "Save Settings"
	LabelSaved = "Saved!"

	savedLabelFor        = 2 * time.Second
	defaultStatsInterval = time.Second
)

var floatPrefix = regexp.MustCompile(`^[+-]?(?:(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?|Infinity)`)

// Form is the raw settings form as typed by the user.
// A non-nil Threshold is saved as is and ConfidenceThreshold is ignored.
type Form struct {
	APIKey              string
	APIBaseURL          string
	DownloadPath        string
	ConfidenceThreshold string
	Threshold           *float64
}

// MainView is the enable toggle plus the two counters.
type MainView struct {
	Enabled bool         `json:"enabled"`
	Stats   domain.Stats `json:"stats"`
}

// SettingsView is the settings form populated from the store.
type SettingsView struct {
	APIKey              string  `json:"apiKey"`
	APIBaseURL          string  `json:"apiBaseUrl"`
	DownloadPath        string  `json:"downloadPath"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	SaveLabel           string  `json:"saveLabel"`
}

// Surface is the user-facing control layer over the settings store.
type Surface struct {
	store  ports.SettingsStore
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	listeners map[int]ports.StatusListener
	nextID    int
	known     *bool
	savedAt   time.Time
}

// NewSurface wires the surface to a store.
func NewSurface(store ports.SettingsStore, logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Surface{
		store:     store,
		logger:    logger,
		now:       time.Now,
		listeners: map[int]ports.StatusListener{},
	}
}

// Subscribe registers l for enable toggles; the returned func unsubscribes it.
func (s *Surface) Subscribe(l ports.StatusListener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SetEnabled persists the flag and then notifies every listener.
func (s *Surface) SetEnabled(ctx context.Context, enabled bool) error {
	if err := s.store.SetEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	s.logger.Info("scanner toggled", "enabled", enabled)
	s.publish(enabled)
	return nil
}

// Sync reloads the persisted flag and notifies listeners when it differs from the last known value.
func (s *Surface) Sync(ctx context.Context) error {
	settings, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	s.mu.Lock()
	changed := s.known == nil || *s.known != settings.Enabled
	s.mu.Unlock()

	if changed {
		s.publish(settings.Enabled)
	}
	return nil
}

// SaveSettings writes all four form fields in one update.
func (s *Surface) SaveSettings(ctx context.Context, form Form) (domain.Settings, error) {
	threshold := ParseThreshold(form.ConfidenceThreshold)
	if form.Threshold != nil {
		threshold = *form.Threshold
	}
	patch := domain.SettingsPatch{
		APIKey:              &form.APIKey,
		APIBaseURL:          &form.APIBaseURL,
		DownloadPath:        &form.DownloadPath,
		ConfidenceThreshold: &threshold,
	}

	settings, err := s.store.Update(ctx, patch)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	s.mu.Lock()
	s.savedAt = s.now()
	s.mu.Unlock()

	s.logger.Info("settings saved", "downloadPath", settings.DownloadPath, "threshold", settings.ConfidenceThreshold)
	return settings, nil
}

// SaveLabel is "Saved!" for two seconds after a save, "Save Settings" otherwise.
func (s *Surface) SaveLabel(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.savedAt.IsZero() && now.Before(s.savedAt.Add(savedLabelFor)) {
		return LabelSaved
	}
	return LabelSave
}

// MainView snapshots the toggle and counters.
func (s *Surface) MainView(ctx context.Context) (MainView, error) {
	settings, err := s.store.Load(ctx)
	if err != nil {
		return MainView{}, fmt.Errorf("load settings: %w", err)
	}
	return MainView{Enabled: settings.Enabled, Stats: settings.Stats()}, nil
}

// SettingsView snapshots the settings form.
func (s *Surface) SettingsView(ctx context.Context) (SettingsView, error) {
	settings, err := s.store.Load(ctx)
	if err != nil {
		return SettingsView{}, fmt.Errorf("load settings: %w", err)
	}
	return SettingsView{
		APIKey:              settings.APIKey,
		APIBaseURL:          settings.APIBaseURL,
		DownloadPath:        settings.DownloadPath,
		ConfidenceThreshold: settings.ConfidenceThreshold,
		SaveLabel:           s.SaveLabel(s.now()),
	}, nil
}

// PollStats calls fn with fresh counters every interval until ctx is done.
func (s *Surface) PollStats(ctx context.Context, interval time.Duration, fn func(domain.Stats)) error {
	if interval <= 0 {
		interval = defaultStatsInterval
	}

	ticker := scheduler.NewTicker(interval)
	err := ticker.Start(ctx, func(time.Time) {
		settings, err := s.store.Load(ctx)
		if err != nil {
			s.logger.Debug("poll stats", "error", err)
			return
		}
		fn(settings.Stats())
	})
	if err != nil {
		return fmt.Errorf("start stats ticker: %w", err)
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return ticker.Stop(stopCtx)
}

func (s *Surface) publish(enabled bool) {
	s.mu.Lock()
	s.known = &enabled
	listeners := make([]ports.StatusListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l.OnStatusChange(enabled)
	}
}

// ParseThreshold reads the leading decimal number of v; NaN when there is none.
func ParseThreshold(v string) float64 {
	m := floatPrefix.FindString(strings.TrimLeft(v, " \t\n\r\f\v"))
	if m == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}
