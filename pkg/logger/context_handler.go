package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls one attribute out of a request context, e.g. the
// request ID or the caller's IP. It returns false when the value is absent.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

type contextHandler struct {
	slog.Handler
	extractors []ContextExtractor
}

// NewContextHandler wraps next so every record is enriched with the
// attributes the extractors find in the record's context. Nil extractors
// are dropped; with none left next is returned unchanged.
func NewContextHandler(next slog.Handler, extractors ...ContextExtractor) slog.Handler {
	var kept []ContextExtractor
	for _, ex := range extractors {
		if ex != nil {
			kept = append(kept, ex)
		}
	}
	if len(kept) == 0 {
		return next
	}
	return &contextHandler{Handler: next, extractors: kept}
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	attrs := make([]slog.Attr, 0, len(h.extractors))
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			attrs = append(attrs, attr)
		}
	}
	rec.AddAttrs(attrs...)
	return h.Handler.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs), extractors: h.extractors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name), extractors: h.extractors}
}
