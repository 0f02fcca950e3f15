package scanner

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/infrastructure/parser"
	"GhibliScanner/internal/ports"
)

// Options tunes which images qualify as candidates.
type Options struct {
	MinWidth         int
	MinHeight        int
	ExcludedPatterns []string
	// MaxInFlight caps concurrent candidate dispatches; 0 means unlimited.
	MaxInFlight int
}

// DefaultOptions mirrors the install-time behavior: 100x100 minimum, avatars skipped.
func DefaultOptions() Options {
	return Options{MinWidth: 100, MinHeight: 100, ExcludedPatterns: []string{"profile_images"}}
}

// Deps wires the scanner to the rest of the pipeline.
type Deps struct {
	Handler ports.CandidateHandler
	Counter ports.ProcessedCounter
	// Prober is optional; without it images with unknown size are skipped.
	Prober ports.ImageProber
	Logger *slog.Logger
}

// Scanner finds qualifying images in a document and dispatches them.
// One Scanner corresponds to one page lifetime: its processed-URL set is never reset.
type Scanner struct {
	handler ports.CandidateHandler
	counter ports.ProcessedCounter
	prober  ports.ImageProber
	opts    Options
	logger  *slog.Logger

	enabled atomic.Bool

	mu        sync.Mutex
	processed map[string]struct{}

	inflight errgroup.Group
}

var _ ports.StatusListener = (*Scanner)(nil)

// New builds an enabled scanner.
func New(deps Deps, opts Options) *Scanner {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Scanner{
		handler:   deps.Handler,
		counter:   deps.Counter,
		prober:    deps.Prober,
		opts:      opts,
		logger:    logger,
		processed: map[string]struct{}{},
	}
	if opts.MaxInFlight > 0 {
		s.inflight.SetLimit(opts.MaxInFlight)
	}
	s.enabled.Store(true)
	return s
}

// Enabled reports the live enabled flag.
func (s *Scanner) Enabled() bool {
	return s.enabled.Load()
}

// SetEnabled flips the live flag; in-flight dispatches are not cancelled.
func (s *Scanner) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// OnStatusChange implements ports.StatusListener.
func (s *Scanner) OnStatusChange(enabled bool) {
	s.SetEnabled(enabled)
}

// Scan examines every image in the document and returns how many were dispatched.
func (s *Scanner) Scan(ctx context.Context, doc *parser.Document) int {
	if !s.Enabled() {
		return 0
	}
	return s.scanTree(ctx, doc, doc.Root())
}

// Watch installs a mutation listener on doc. While the scanner is disabled
// nothing is installed and installed listeners ignore insertions.
func (s *Scanner) Watch(ctx context.Context, doc *parser.Document) (stop func(), installed bool) {
	if !s.Enabled() {
		return func() {}, false
	}

	stop = doc.Observe(func(m parser.Mutation) {
		if !s.Enabled() {
			return
		}
		for _, added := range m.Added {
			s.scanTree(ctx, doc, added)
		}
	})
	return stop, true
}

// Wait blocks until every dispatched candidate has been handled.
func (s *Scanner) Wait() {
	_ = s.inflight.Wait()
}

// Seen reports whether url was already dispatched.
func (s *Scanner) Seen(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[url]
	return ok
}

func (s *Scanner) scanTree(ctx context.Context, doc *parser.Document, root *goquery.Selection) int {
	dispatched := 0
	root.Each(func(_ int, el *goquery.Selection) {
		if goquery.NodeName(el) == "img" && s.processImage(ctx, doc, el) {
			dispatched++
		}
	})
	root.Find("img").Each(func(_ int, img *goquery.Selection) {
		if s.processImage(ctx, doc, img) {
			dispatched++
		}
	})
	return dispatched
}

func (s *Scanner) processImage(ctx context.Context, doc *parser.Document, img *goquery.Selection) bool {
	if !s.Enabled() {
		return false
	}

	src, _ := img.Attr("src")
	imageURL := doc.Resolve(src)
	if imageURL == "" || !fetchable(imageURL) || s.Seen(imageURL) || s.excluded(imageURL) {
		return false
	}

	width, height, natW, natH := s.size(ctx, img, imageURL)
	if width < s.opts.MinWidth || height < s.opts.MinHeight {
		s.logger.Debug("image too small", "url", imageURL, "width", width, "height", height)
		return false
	}

	if !s.claim(imageURL) {
		return false
	}

	// Metadata reports the intrinsic size once the image has been probed.
	if natW > 0 && natH > 0 {
		width, height = natW, natH
	}
	candidate := domain.Candidate{
		URL:     imageURL,
		Width:   width,
		Height:  height,
		AltText: strings.TrimSpace(img.AttrOr("alt", "")),
		PageURL: doc.URL(),
	}
	s.dispatch(ctx, candidate)
	return true
}

// size returns the rendered size used for filtering plus the intrinsic size
// when a probe ran (0 otherwise).
func (s *Scanner) size(ctx context.Context, img *goquery.Selection, imageURL string) (int, int, int, int) {
	width, height := dimensions(img)
	if (width > 0 && height > 0) || s.prober == nil {
		return width, height, 0, 0
	}

	natW, natH, err := s.prober.Probe(ctx, imageURL)
	if err != nil {
		s.logger.Debug("probe failed", "url", imageURL, "error", err)
		return width, height, 0, 0
	}
	width, height = fillMissing(width, height, natW, natH)
	return width, height, natW, natH
}

// claim adds url to the processed set; false means another caller got there first.
func (s *Scanner) claim(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processed[url]; ok {
		return false
	}
	s.processed[url] = struct{}{}
	return true
}

func (s *Scanner) dispatch(ctx context.Context, candidate domain.Candidate) {
	s.logger.Info("image found", "url", candidate.URL, "width", candidate.Width, "height", candidate.Height)

	s.inflight.Go(func() error {
		if s.handler != nil {
			result := s.handler.HandleCandidate(ctx, candidate)
			s.logger.Debug("candidate handled", "url", candidate.URL, "matched", result.Matched, "reason", result.Reason)
		}
		if s.counter != nil {
			if _, err := s.counter.IncrementProcessed(ctx); err != nil {
				s.logger.Warn("increment processed", "error", err)
			}
		}
		return nil
	})
}

func (s *Scanner) excluded(imageURL string) bool {
	return lo.ContainsBy(s.opts.ExcludedPatterns, func(pattern string) bool {
		return pattern != "" && strings.Contains(imageURL, pattern)
	})
}

func fetchable(imageURL string) bool {
	u, err := url.Parse(imageURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
