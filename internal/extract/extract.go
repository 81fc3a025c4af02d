// Package extract turns file content into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

var (
	// ErrUnsupportedType is returned when no extractor handles a content type.
	ErrUnsupportedType = errors.New("unsupported content type")
	// ErrProvider wraps failures of a remote extraction service.
	ErrProvider = errors.New("extraction provider error")
)

// Extractor extracts text from content of the given type.
type Extractor interface {
	Extract(ctx context.Context, content []byte, contentType string) (string, error)
}

// Func adapts a function to Extractor.
type Func func(ctx context.Context, content []byte, contentType string) (string, error)

// Extract calls f.
func (f Func) Extract(ctx context.Context, content []byte, contentType string) (string, error) {
	return f(ctx, content, contentType)
}

// PlainText returns text/* and JSON content as is.
type PlainText struct{}

// Extract validates UTF-8 and trims the content.
func (PlainText) Extract(_ context.Context, content []byte, contentType string) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%s content is not valid UTF-8", contentType)
	}
	return strings.TrimSpace(string(content)), nil
}

type route struct {
	prefix string
	ex     Extractor
}

// Router dispatches by media type prefix, first match wins.
type Router struct {
	routes   []route
	fallback Extractor
}

// NewRouter creates a router; fallback may be nil.
func NewRouter(fallback Extractor) *Router {
	return &Router{fallback: fallback}
}

// Handle routes media types starting with prefix (e.g. "text/", "image/png") to ex.
func (r *Router) Handle(prefix string, ex Extractor) *Router {
	r.routes = append(r.routes, route{prefix: strings.ToLower(prefix), ex: ex})
	return r
}

// Extract picks the extractor for contentType.
func (r *Router) Extract(ctx context.Context, content []byte, contentType string) (string, error) {
	mt := MediaType(contentType)
	for _, rt := range r.routes {
		if strings.HasPrefix(mt, rt.prefix) {
			return rt.ex.Extract(ctx, content, mt)
		}
	}
	if r.fallback != nil {
		return r.fallback.Extract(ctx, content, mt)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mt)
}

// MediaType strips parameters and lowercases a Content-Type value.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// RateLimited bounds calls to an upstream extractor.
type RateLimited struct {
	next    Extractor
	limiter *rate.Limiter
}

// NewRateLimited wraps next. rps <= 0 disables limiting.
func NewRateLimited(next Extractor, rps float64, burst int) Extractor {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Extract waits for a token, then delegates.
func (r *RateLimited) Extract(ctx context.Context, content []byte, contentType string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("extraction rate limit: %w", err)
	}
	return r.next.Extract(ctx, content, contentType)
}
