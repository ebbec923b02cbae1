// Package llmtest provides an in-memory llm.Backend for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/capitalize-ai/conversation-analytics/internal/llm"
)

// HandlerFunc answers one request with a raw JSON document or an error.
type HandlerFunc func(req *llm.Request) (json.RawMessage, error)

// Backend is a scripted, concurrency-safe llm.Backend.
type Backend struct {
	mu       sync.Mutex
	handler  HandlerFunc
	requests []*llm.Request
}

// New creates a backend answering with h.
func New(h HandlerFunc) *Backend {
	return &Backend{handler: h}
}

// Name returns the backend name.
func (b *Backend) Name() string { return "fake" }

// Complete records req and delegates to the handler.
func (b *Backend) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()

	raw, err := b.handler(req)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Content: raw, Model: req.Model}, nil
}

// Requests returns a copy of the requests received so far.
func (b *Backend) Requests() []*llm.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*llm.Request(nil), b.requests...)
}

// Calls returns the number of requests received.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// Router dispatches requests by query name. Unknown queries fail.
func Router(routes map[string]HandlerFunc) HandlerFunc {
	return func(req *llm.Request) (json.RawMessage, error) {
		h, ok := routes[req.Query]
		if !ok {
			return nil, fmt.Errorf("no route for query %q", req.Query)
		}
		return h(req)
	}
}

// JSON answers with v marshalled.
func JSON(v any) HandlerFunc {
	return func(*llm.Request) (json.RawMessage, error) {
		return json.Marshal(v)
	}
}

// ErrRateLimited is a rate-limit failure as a backend would report it.
var ErrRateLimited = fmt.Errorf("%w: 429 Too Many Requests", llm.ErrRateLimited)

// ErrServer is a non-transient backend failure.
var ErrServer = errors.New("500 Internal Server Error")

// Sleeper records backoff sleeps without waiting.
type Sleeper struct {
	mu     sync.Mutex
	Delays []time.Duration
}

// Sleep records d.
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.Delays = append(s.Delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

// NoSleep returns immediately.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
