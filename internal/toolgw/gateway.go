// Package toolgw provides a uniform gateway to external grounding lookups.
// Tool results are advisory: a tool that keeps failing yields an "unknown"
// fact instead of blocking the pipeline.
package toolgw

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/utils"
)

// ErrToolUnavailable marks a transient tool failure. The gateway retries a
// bounded number of times and then substitutes an unknown fact.
var ErrToolUnavailable = errors.New("tool unavailable")

const (
	defaultMaxRetries = 2
	defaultRetryDelay = time.Second
)

// Tool is a single external grounding lookup: structured query in, value out.
type Tool interface {
	Name() string
	Lookup(ctx context.Context, query string) (string, error)
}

// ToolFact is one grounding result. Known is false when the lookup could not
// be resolved; consumers must treat such facts as absent evidence, never as
// negative evidence.
type ToolFact struct {
	Tool  string    `json:"tool"`
	Query string    `json:"query"`
	Value string    `json:"value,omitempty"`
	Known bool      `json:"known"`
	At    time.Time `json:"at"`
}

// Facts collects the grounding results for one dossier, keyed by tool name.
type Facts map[string]ToolFact

// Get returns the fact for a tool, or an unknown zero fact.
func (f Facts) Get(tool string) ToolFact {
	if f == nil {
		return ToolFact{Tool: tool}
	}
	if fact, ok := f[tool]; ok {
		return fact
	}
	return ToolFact{Tool: tool}
}

type cacheKey struct {
	tool  string
	query string
}

// Gateway dispatches lookups to registered tools, caching results by
// (tool, query) for the lifetime of a run so every unique query triggers at
// most one underlying call. Concurrent lookups for the same key share the one
// in-flight call instead of racing past the cache.
type Gateway struct {
	mu      sync.Mutex
	tools   map[string]Tool
	cache   map[cacheKey]ToolFact
	pending map[cacheKey]chan struct{}
	logger  *zap.Logger

	maxRetries int
	retryDelay time.Duration
	now        func() time.Time
}

// New creates a gateway over the provided tools. maxRetries bounds the number
// of additional attempts after the first failure; values below zero fall back
// to the default.
func New(tools []Tool, maxRetries int, logger *zap.Logger) *Gateway {
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}

	return &Gateway{
		tools:      byName,
		cache:      make(map[cacheKey]ToolFact),
		pending:    make(map[cacheKey]chan struct{}),
		logger:     logger,
		maxRetries: maxRetries,
		retryDelay: defaultRetryDelay,
		now:        time.Now,
	}
}

// Lookup resolves a query through the named tool. It never returns an error:
// an unresolvable lookup produces an unknown fact. The first caller for a key
// becomes the leader and performs the call; concurrent callers for the same
// key wait for the leader's cached result.
func (g *Gateway) Lookup(ctx context.Context, tool, query string) ToolFact {
	key := cacheKey{tool: tool, query: query}

	for {
		g.mu.Lock()
		if fact, ok := g.cache[key]; ok {
			g.mu.Unlock()
			return fact
		}
		if inflight, ok := g.pending[key]; ok {
			g.mu.Unlock()
			select {
			case <-inflight:
				continue
			case <-ctx.Done():
				// The leader still owns the key; this caller just gives up.
				return ToolFact{Tool: tool, Query: query, At: g.now()}
			}
		}
		done := make(chan struct{})
		g.pending[key] = done
		impl, ok := g.tools[tool]
		g.mu.Unlock()

		fact := ToolFact{Tool: tool, Query: query, At: g.now()}

		if !ok {
			g.logger.Debug("unknown tool requested", zap.String("tool", tool))
			return g.settle(key, done, fact)
		}

		value, err := g.lookupWithRetries(ctx, impl, query)
		if err != nil {
			g.logger.Warn("tool lookup failed, substituting unknown",
				zap.String("tool", tool),
				zap.String("query", query),
				zap.Error(err),
			)
			return g.settle(key, done, fact)
		}

		fact.Value = value
		fact.Known = true
		return g.settle(key, done, fact)
	}
}

// settle publishes the leader's result and releases the waiters.
func (g *Gateway) settle(key cacheKey, done chan struct{}, fact ToolFact) ToolFact {
	g.mu.Lock()
	g.cache[key] = fact
	delete(g.pending, key)
	g.mu.Unlock()
	close(done)
	return fact
}

func (g *Gateway) lookupWithRetries(ctx context.Context, tool Tool, query string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			if err := utils.WaitFor(ctx, g.retryDelay); err != nil {
				return "", err
			}
			g.logger.Debug("retrying tool lookup",
				zap.String("tool", tool.Name()),
				zap.Int("attempt", attempt),
			)
		}

		value, err := tool.Lookup(ctx, query)
		if err == nil {
			return value, nil
		}
		lastErr = err

		// Only transient failures are worth retrying.
		if !errors.Is(err, ErrToolUnavailable) {
			break
		}
	}

	return "", lastErr
}
