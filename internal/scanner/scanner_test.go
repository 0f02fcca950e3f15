package scanner

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"testing"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/infrastructure/parser"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []domain.Candidate
}

func (h *recordingHandler) HandleCandidate(_ context.Context, c domain.Candidate) domain.ProcessResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, c)
	return domain.ProcessResult{Candidate: c, Status: domain.StatusProcessed, Reason: domain.ReasonNotMatched}
}

func (h *recordingHandler) urls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.seen))
	for _, c := range h.seen {
		out = append(out, c.URL)
	}
	return out
}

type countingStore struct {
	mu        sync.Mutex
	processed int64
}

func (c *countingStore) IncrementProcessed(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed++
	return c.processed, nil
}

type stubProber struct {
	width, height int
	err           error
	calls         int
}

func (p *stubProber) Probe(context.Context, string) (int, int, error) {
	p.calls++
	return p.width, p.height, p.err
}

func newDoc(t *testing.T, body string) *parser.Document {
	t.Helper()
	doc, err := parser.ParseDocument(strings.NewReader("<html><body>"+body+"</body></html>"), "https://example.org/feed/")
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	return doc
}

func TestScanEmitsOnlyLargeEnoughImages(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	counter := &countingStore{}
	s := New(Deps{Handler: handler, Counter: counter}, DefaultOptions())

	doc := newDoc(t, `
		<img src="narrow.jpg" width="99" height="400">
		<img src="short.jpg" width="400" height="99">
		<img src="edge.jpg" width="100" height="100">
		<img src="styled.jpg" style="width: 320px; height:240px">
		<img src="unsized.jpg">
		<img width="500" height="500">`)

	n := s.Scan(context.Background(), doc)
	s.Wait()

	if n != 2 {
		t.Fatalf("expected 2 dispatched, got %d", n)
	}
	got := strings.Join(handler.urls(), ",")
	for _, want := range []string{"https://example.org/feed/edge.jpg", "https://example.org/feed/styled.jpg"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %s in %s", want, got)
		}
	}
	if counter.processed != 2 {
		t.Fatalf("expected processed counter 2, got %d", counter.processed)
	}
}

func TestScanDeduplicatesAndExcludes(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	s := New(Deps{Handler: handler}, DefaultOptions())

	doc := newDoc(t, `
		<img src="https://cdn.example.org/a.jpg" width="300" height="300">
		<img src="https://cdn.example.org/a.jpg" width="300" height="300">
		<img src="https://pbs.example.org/profile_images/me.jpg" width="300" height="300">
		<img src="data:image/png;base64,AAAA" width="300" height="300">`)

	if n := s.Scan(context.Background(), doc); n != 1 {
		t.Fatalf("first scan dispatched %d, want 1", n)
	}
	if n := s.Scan(context.Background(), doc); n != 0 {
		t.Fatalf("second scan dispatched %d, want 0", n)
	}
	s.Wait()

	if got := handler.urls(); len(got) != 1 || got[0] != "https://cdn.example.org/a.jpg" {
		t.Fatalf("unexpected candidates %v", got)
	}
	if !s.Seen("https://cdn.example.org/a.jpg") {
		t.Fatalf("expected url to be recorded as processed")
	}
}

func TestCandidateCarriesPageMetadata(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	s := New(Deps{Handler: handler}, DefaultOptions())
	doc := newDoc(t, `<img src="/totoro.png" alt=" forest spirit " width="640" height="480">`)

	s.Scan(context.Background(), doc)
	s.Wait()

	if len(handler.seen) != 1 {
		t.Fatalf("expected one candidate, got %d", len(handler.seen))
	}
	c := handler.seen[0]
	if c.URL != "https://example.org/totoro.png" || c.AltText != "forest spirit" || c.PageURL != "https://example.org/feed/" {
		t.Fatalf("unexpected candidate %+v", c)
	}
	if c.Width != 640 || c.Height != 480 {
		t.Fatalf("unexpected size %dx%d", c.Width, c.Height)
	}
}

func TestWatchHandlesInsertedImages(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	s := New(Deps{Handler: handler}, DefaultOptions())
	doc := newDoc(t, `<div id="timeline"></div>`)

	stop, installed := s.Watch(context.Background(), doc)
	if !installed {
		t.Fatalf("expected listener to be installed")
	}
	defer stop()

	markup := `<article><img src="nested.jpg" width="200" height="200"></article><img src="direct.jpg" width="200" height="200"><img src="tiny.jpg" width="20" height="20">`
	if err := doc.AppendHTML("#timeline", markup); err != nil {
		t.Fatalf("AppendHTML: %v", err)
	}
	s.Wait()

	got := strings.Join(handler.urls(), ",")
	if len(handler.urls()) != 2 || !strings.Contains(got, "nested.jpg") || !strings.Contains(got, "direct.jpg") {
		t.Fatalf("unexpected candidates %s", got)
	}
}

func TestDisabledScannerIgnoresImages(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	s := New(Deps{Handler: handler}, DefaultOptions())
	doc := newDoc(t, `<div id="timeline"><img src="a.jpg" width="300" height="300"></div>`)

	stop, installed := s.Watch(context.Background(), doc)
	if !installed {
		t.Fatalf("expected listener to be installed while enabled")
	}
	defer stop()

	s.OnStatusChange(false)
	if n := s.Scan(context.Background(), doc); n != 0 {
		t.Fatalf("disabled scan dispatched %d", n)
	}
	if err := doc.AppendHTML("#timeline", `<img src="b.jpg" width="300" height="300">`); err != nil {
		t.Fatalf("AppendHTML: %v", err)
	}
	if _, ok := s.Watch(context.Background(), doc); ok {
		t.Fatalf("expected no listener while disabled")
	}
	s.Wait()
	if len(handler.urls()) != 0 {
		t.Fatalf("expected nothing dispatched while disabled, got %v", handler.urls())
	}

	s.OnStatusChange(true)
	if err := doc.AppendHTML("#timeline", `<img src="c.jpg" width="300" height="300">`); err != nil {
		t.Fatalf("AppendHTML: %v", err)
	}
	s.Wait()
	if got := handler.urls(); len(got) != 1 || !strings.HasSuffix(got[0], "/c.jpg") {
		t.Fatalf("expected only c.jpg after re-enable, got %v", got)
	}
}

func TestProbeFillsUnknownSize(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	prober := &stubProber{width: 800, height: 400}
	s := New(Deps{Handler: handler, Prober: prober}, DefaultOptions())
	doc := newDoc(t, `<img src="natural.jpg"><img src="half.jpg" width="300"><img src="declared.jpg" width="150" height="150">`)

	if n := s.Scan(context.Background(), doc); n != 3 {
		t.Fatalf("expected 3 dispatched, got %d", n)
	}
	s.Wait()

	if prober.calls != 2 {
		t.Fatalf("expected probe only for unsized images, got %d calls", prober.calls)
	}
	want := map[string][2]int{
		"natural.jpg":  {800, 400},
		"half.jpg":     {800, 400},
		"declared.jpg": {150, 150},
	}
	for _, c := range handler.seen {
		size := want[path.Base(c.URL)]
		if c.Width != size[0] || c.Height != size[1] {
			t.Fatalf("%s: expected metadata %dx%d, got %dx%d", c.URL, size[0], size[1], c.Width, c.Height)
		}
	}
}

func TestProbedAspectRatioDecidesFilter(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	s := New(Deps{Handler: handler, Prober: &stubProber{width: 1000, height: 90}}, DefaultOptions())
	doc := newDoc(t, `<img src="banner.jpg" width="500"><img src="tall.jpg" height="300">`)

	// banner renders at 500x45 and is skipped; tall renders at 3333x300.
	if n := s.Scan(context.Background(), doc); n != 1 {
		t.Fatalf("expected 1 dispatched, got %d", n)
	}
	s.Wait()
	if got := handler.urls(); len(got) != 1 || !strings.HasSuffix(got[0], "/tall.jpg") {
		t.Fatalf("expected only tall.jpg, got %v", got)
	}
	if c := handler.seen[0]; c.Width != 1000 || c.Height != 90 {
		t.Fatalf("expected intrinsic 1000x90 metadata, got %dx%d", c.Width, c.Height)
	}
}

func TestProbeFailureSkipsImage(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	s := New(Deps{Handler: handler, Prober: &stubProber{err: errors.New("boom")}}, DefaultOptions())
	doc := newDoc(t, `<img src="broken.jpg">`)

	if n := s.Scan(context.Background(), doc); n != 0 {
		t.Fatalf("expected 0 dispatched, got %d", n)
	}
	if s.Seen("https://example.org/feed/broken.jpg") {
		t.Fatalf("skipped image must not be recorded")
	}
}

func TestParseLength(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"":       0,
		"120":    120,
		" 64px ": 64,
		"99.6":   100,
		"50%":    0,
		"auto":   0,
		"-10":    0,
		"200PX":  200,
	}
	for in, want := range cases {
		if got := parseLength(in); got != want {
			t.Fatalf("parseLength(%q) = %d, want %d", in, got, want)
		}
	}
}
