package parser

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Mutation lists the top-level elements inserted by one change.
type Mutation struct {
	Added []*goquery.Selection
}

// Document is a parsed page that accepts insertions and reports them to observers.
type Document struct {
	doc     *goquery.Document
	pageURL *url.URL

	mu        sync.Mutex
	observers map[int]func(Mutation)
	nextID    int
}

// NewDocument wraps an already parsed goquery document.
func NewDocument(doc *goquery.Document, pageURL string) *Document {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}
	return &Document{doc: doc, pageURL: parsed, observers: map[int]func(Mutation){}}
}

// ParseDocument parses HTML from r.
func ParseDocument(r io.Reader, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return NewDocument(doc, pageURL), nil
}

// URL is the page address the document was loaded from.
func (d *Document) URL() string {
	return d.pageURL.String()
}

// Root returns the body element, or the whole document when there is none.
func (d *Document) Root() *goquery.Selection {
	if body := d.doc.Find("body"); body.Length() > 0 {
		return body.First()
	}
	return d.doc.Selection
}

// Resolve turns a possibly relative reference into an absolute URL.
func (d *Document) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return d.pageURL.ResolveReference(parsed).String()
}

// Observe registers fn for every subsequent insertion; the returned func disconnects it.
func (d *Document) Observe(fn func(Mutation)) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.observers[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}
}

// AppendHTML parses markup as children of the first element matching selector
// and appends them there.
func (d *Document) AppendHTML(selector, markup string) error {
	target, err := d.target(selector)
	if err != nil {
		return err
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), contextNode(target.Get(0)))
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	return d.AppendNodes(selector, nodes...)
}

// AppendNodes moves detached nodes under the first element matching selector.
func (d *Document) AppendNodes(selector string, nodes ...*html.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	target, err := d.target(selector)
	if err != nil {
		return err
	}

	target.AppendNodes(nodes...)

	added := make([]*goquery.Selection, 0, len(nodes))
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			continue
		}
		added = append(added, d.doc.FindNodes(n))
	}
	if len(added) > 0 {
		d.notify(Mutation{Added: added})
	}
	return nil
}

func (d *Document) target(selector string) (*goquery.Selection, error) {
	if strings.TrimSpace(selector) == "" {
		return d.Root(), nil
	}
	target := d.doc.Find(selector).First()
	if target.Length() == 0 {
		return nil, fmt.Errorf("no element matches %q", selector)
	}
	return target, nil
}

func (d *Document) notify(m Mutation) {
	d.mu.Lock()
	observers := make([]func(Mutation), 0, len(d.observers))
	for _, fn := range d.observers {
		observers = append(observers, fn)
	}
	d.mu.Unlock()

	for _, fn := range observers {
		fn(m)
	}
}

func contextNode(n *html.Node) *html.Node {
	if n != nil && n.Type == html.ElementNode {
		return n
	}
	return &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
}
