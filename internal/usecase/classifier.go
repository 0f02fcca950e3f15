package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/infrastructure/imaging"
	"GhibliScanner/internal/ports"
)

const (
	defaultStyle = "Studio Ghibli"

	positiveConfidence = 0.8
	negativeConfidence = 0.2
)

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)

// ClassifierDeps wires the style classifier.
type ClassifierDeps struct {
	Settings ports.SettingsLoader
	Fetcher  ports.ImageFetcher
	Model    ports.VisionModel
	Style    string
	Logger   *slog.Logger
}

// StyleClassifier asks a vision backend whether an image is in the configured art style.
type StyleClassifier struct {
	settings ports.SettingsLoader
	fetcher  ports.ImageFetcher
	model    ports.VisionModel
	style    string
	logger   *slog.Logger
}

var _ ports.Classifier = (*StyleClassifier)(nil)

// NewStyleClassifier builds the classifier; an empty style means "Studio Ghibli".
func NewStyleClassifier(deps ClassifierDeps) *StyleClassifier {
	style := strings.TrimSpace(deps.Style)
	if style == "" {
		style = defaultStyle
	}
	return &StyleClassifier{
		settings: deps.Settings,
		fetcher:  deps.Fetcher,
		model:    deps.Model,
		style:    style,
		logger:   deps.Logger,
	}
}

// Prompt is the single question sent with every image.
func (c *StyleClassifier) Prompt() string {
	return fmt.Sprintf("Is this image in %s art style? Answer only with 'true' or 'false'.", c.style)
}

// Classify never fails: every problem is reported through Verdict.Error.
func (c *StyleClassifier) Classify(ctx context.Context, url string) domain.Verdict {
	verdict, err := c.classify(ctx, url)
	if err != nil {
		c.log(slog.LevelWarn, "classification failed", "url", url, "error", err)
		return domain.Verdict{IsGhibli: false, Error: err.Error()}
	}
	c.log(slog.LevelDebug, "classified", "url", url, "ghibli", verdict.IsGhibli, "raw", verdict.RawResponse)
	return verdict
}

func (c *StyleClassifier) classify(ctx context.Context, url string) (domain.Verdict, error) {
	if c.settings == nil || c.fetcher == nil || c.model == nil {
		return domain.Verdict{}, fmt.Errorf("classifier is not configured")
	}

	settings, err := c.settings.Load(ctx)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("load settings: %w", err)
	}
	if settings.APIKey == "" {
		return domain.Verdict{}, domain.ErrAPIKeyNotSet
	}

	data, contentType, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		c.log(slog.LevelDebug, "fetch image", "url", url, "error", err)
		return domain.Verdict{}, domain.ErrFetchImage
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	if !base64Pattern.MatchString(encoded) {
		return domain.Verdict{}, domain.ErrInvalidBase64
	}

	baseURL := settings.APIBaseURL
	if baseURL == "" {
		baseURL = domain.DefaultAPIBaseURL
	}

	answer, err := c.model.Ask(ctx, domain.VisionRequest{
		BaseURL:  baseURL,
		APIKey:   settings.APIKey,
		Prompt:   c.Prompt(),
		MIMEType: imaging.DetectMIME(contentType, data),
		Data:     encoded,
		Image:    data,
	})
	if err != nil {
		return domain.Verdict{}, err
	}

	return Evaluate(answer, settings.ConfidenceThreshold), nil
}

func (c *StyleClassifier) log(level slog.Level, msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Log(context.Background(), level, msg, args...)
}

// Evaluate turns the model's text answer into a verdict.
func Evaluate(answer string, threshold float64) domain.Verdict {
	positive := strings.Contains(strings.ToLower(answer), "true")
	confidence := negativeConfidence
	if positive {
		confidence = positiveConfidence
	}
	return domain.Verdict{
		IsGhibli:    positive && confidence >= EffectiveThreshold(threshold),
		Confidence:  confidence,
		RawResponse: answer,
	}
}

// EffectiveThreshold substitutes the default for an unset (0) or NaN threshold.
func EffectiveThreshold(threshold float64) float64 {
	if threshold == 0 || math.IsNaN(threshold) {
		return domain.DefaultConfidenceThreshold
	}
	return threshold
}
