package toolgw

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingTool struct {
	name  string
	value string
	errs  []error
	calls int
}

func (t *countingTool) Name() string { return t.name }

func (t *countingTool) Lookup(context.Context, string) (string, error) {
	t.calls++
	if len(t.errs) > 0 {
		err := t.errs[0]
		t.errs = t.errs[1:]
		return "", err
	}
	return t.value, nil
}

func newTestGateway(tools []Tool, maxRetries int) *Gateway {
	g := New(tools, maxRetries, zap.NewNop())
	g.retryDelay = 0
	g.now = func() time.Time { return time.Unix(0, 0) }
	return g
}

func TestLookupCachesPerQuery(t *testing.T) {
	tool := &countingTool{name: "salary", value: "100-200"}
	g := newTestGateway([]Tool{tool}, 0)

	first := g.Lookup(context.Background(), "salary", "go engineer")
	second := g.Lookup(context.Background(), "salary", "go engineer")

	if tool.calls != 1 {
		t.Fatalf("expected exactly one underlying call, got %d", tool.calls)
	}

	if !first.Known || first.Value != "100-200" {
		t.Fatalf("unexpected fact: %+v", first)
	}

	if second != first {
		t.Fatalf("cached fact differs: %+v vs %+v", second, first)
	}
}

type slowTool struct {
	name    string
	value   string
	latency time.Duration
	calls   atomic.Int64
}

func (t *slowTool) Name() string { return t.name }

func (t *slowTool) Lookup(context.Context, string) (string, error) {
	t.calls.Add(1)
	time.Sleep(t.latency)
	return t.value, nil
}

func TestLookupConcurrentCallersShareOneCall(t *testing.T) {
	tool := &slowTool{name: "publications", value: "active", latency: 50 * time.Millisecond}
	g := newTestGateway([]Tool{tool}, 0)

	const callers = 4
	facts := make([]ToolFact, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			facts[i] = g.Lookup(context.Background(), "publications", "Acme")
		}()
	}
	wg.Wait()

	if got := tool.calls.Load(); got != 1 {
		t.Fatalf("expected at most one underlying call per unique query, got %d", got)
	}

	for i, fact := range facts {
		if !fact.Known || fact.Value != "active" {
			t.Fatalf("caller %d got an unshared fact: %+v", i, fact)
		}
		if fact != facts[0] {
			t.Fatalf("caller %d fact differs from the leader's: %+v vs %+v", i, fact, facts[0])
		}
	}
}

func TestLookupRetriesTransientFailure(t *testing.T) {
	tool := &countingTool{
		name:  "salary",
		value: "ok",
		errs:  []error{ErrToolUnavailable, ErrToolUnavailable},
	}
	g := newTestGateway([]Tool{tool}, 2)

	fact := g.Lookup(context.Background(), "salary", "q")
	if !fact.Known {
		t.Fatalf("expected lookup to succeed after retries, got %+v", fact)
	}

	if tool.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", tool.calls)
	}
}

func TestLookupSubstitutesUnknownAfterRetryBudget(t *testing.T) {
	tool := &countingTool{
		name: "salary",
		errs: []error{ErrToolUnavailable, ErrToolUnavailable, ErrToolUnavailable},
	}
	g := newTestGateway([]Tool{tool}, 1)

	fact := g.Lookup(context.Background(), "salary", "q")
	if fact.Known {
		t.Fatalf("expected unknown fact, got %+v", fact)
	}

	if tool.calls != 2 {
		t.Fatalf("expected retry budget of 2 attempts, got %d", tool.calls)
	}
}

func TestLookupDoesNotRetryPermanentFailure(t *testing.T) {
	tool := &countingTool{name: "salary", errs: []error{errors.New("bad query")}}
	g := newTestGateway([]Tool{tool}, 3)

	fact := g.Lookup(context.Background(), "salary", "q")
	if fact.Known {
		t.Fatalf("expected unknown fact")
	}

	if tool.calls != 1 {
		t.Fatalf("permanent failures must not be retried, got %d calls", tool.calls)
	}
}

func TestLookupUnknownTool(t *testing.T) {
	g := newTestGateway(nil, 0)

	fact := g.Lookup(context.Background(), "nope", "q")
	if fact.Known {
		t.Fatalf("expected unknown fact for unregistered tool")
	}
}

func TestSponsorshipToolNegativeWins(t *testing.T) {
	tool := NewSponsorshipTool()

	value, err := tool.Lookup(context.Background(), "Candidates must be authorized to work without sponsorship.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if value != SponsorshipUnlikely {
		t.Fatalf("expected unlikely, got %s", value)
	}
}

func TestSponsorshipToolUnknownWithoutWording(t *testing.T) {
	tool := NewSponsorshipTool()

	if _, err := tool.Lookup(context.Background(), "We build rockets."); err == nil {
		t.Fatalf("expected error when no wording present")
	}
}

func TestSalaryToolKeywordMatch(t *testing.T) {
	tool := NewSalaryTool()

	value, err := tool.Lookup(context.Background(), "Senior Machine Learning Engineer at Acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if value == "" {
		t.Fatalf("expected a salary range")
	}
}

func TestFactsGetZeroValue(t *testing.T) {
	var facts Facts

	fact := facts.Get("salary")
	if fact.Known {
		t.Fatalf("expected unknown fact from nil map")
	}
}
