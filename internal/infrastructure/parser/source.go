package parser

import (
	"context"
	"fmt"
	"log/slog"

	"GhibliScanner/internal/config"
)

// Source loads the pages listed in configuration.
type Source struct {
	loader *Loader
	pages  []config.PageConfig
	logger *slog.Logger
}

// NewSource wires the loader with config-defined pages.
func NewSource(loader *Loader, pages []config.PageConfig, log *slog.Logger) *Source {
	return &Source{
		loader: loader,
		pages:  pages,
		logger: log,
	}
}

// Visit loads every configured page in order and hands each result to fn;
// a failing page does not stop the rest.
func (s *Source) Visit(ctx context.Context, fn func(page config.PageConfig, doc *Document, err error)) error {
	if s.loader == nil {
		return fmt.Errorf("page loader is not configured")
	}

	s.debug("load pages", "pages", len(s.pages))

	for _, page := range s.pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := s.loader.Load(ctx, page.URL)
		if err != nil {
			s.debug("page failed", "page", pageName(page), "error", err)
			fn(page, nil, fmt.Errorf("page %s: %w", pageName(page), err))
			continue
		}
		s.debug("page loaded", "page", pageName(page), "images", doc.Root().Find("img").Length())
		fn(page, doc, nil)
	}
	return nil
}

func pageName(p config.PageConfig) string {
	if p.Name != "" {
		return p.Name
	}
	return p.URL
}

func (s *Source) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
