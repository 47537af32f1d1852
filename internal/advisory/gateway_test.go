package advisory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-crm-backend/internal/search"
)

type fakeProvider struct {
	calls   atomic.Int32
	text    string
	err     error
	release chan struct{}

	mu   sync.Mutex
	last Request
}

func (f *fakeProvider) Complete(_ context.Context, req Request) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return f.text, f.err
}

func newTestGateway(p Provider, opts ...GatewayOption) (*Gateway, *Cache) {
	c := NewCache(NewMemoryStore(), nil)
	return NewGateway(c, p, time.Minute, opts...), c
}

func TestAdvise_MissThenHit(t *testing.T) {
	p := &fakeProvider{text: "do X"}
	g, _ := newTestGateway(p)
	ctx := context.Background()

	first, err := g.Advise(ctx, KindChurn, "prompt", "data")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "do X", first.Text)
	assert.Equal(t, KindChurn, first.Kind)

	second, err := g.Advise(ctx, KindChurn, "prompt", "data")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "do X", second.Text)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestAdvise_ProviderFailureIsTypedAndNotCached(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}
	g, c := newTestGateway(p)
	ctx := context.Background()

	_, err := g.Advise(ctx, KindOffers, "prompt", "data")
	require.Error(t, err)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, err.Error(), "boom")

	_, ok, _ := c.Get(ctx, Fingerprint("prompt", "data"))
	assert.False(t, ok)

	p.err = nil
	p.text = "recovered"
	adv, err := g.Advise(ctx, KindOffers, "prompt", "data")
	require.NoError(t, err)
	assert.Equal(t, "recovered", adv.Text)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestAdvise_ConcurrentMissesShareOneCall(t *testing.T) {
	p := &fakeProvider{text: "shared", release: make(chan struct{})}
	g, _ := newTestGateway(p)

	var wg sync.WaitGroup
	results := make([]Advice, 5)
	errs := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = g.Advise(context.Background(), KindRestock, "p", "d")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(p.release)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i].Text)
	}
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestAdvise_CancelledWaiterGetsProviderError(t *testing.T) {
	p := &fakeProvider{text: "late", release: make(chan struct{})}
	g, c := newTestGateway(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Advise(ctx, KindPricing, "p", "d")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)

	// the shared call still completes and fills the cache
	close(p.release)
	require.Eventually(t, func() bool {
		_, ok, _ := c.Get(context.Background(), Fingerprint("p", "d"))
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestAdvise_SystemCarriesRoleKnowledgeAndData(t *testing.T) {
	kb := search.NewIndexFromStrings([]string{
		"loyalty programs reward repeat customers with points and discounts",
		"unrelated paragraph about shipping containers and ports overseas",
	}, search.WithMinParagraphRunes(0))
	p := &fakeProvider{text: "ok"}
	g, _ := newTestGateway(p, WithRole("ROLE"), WithKnowledge(kb, 3, 0.05))

	_, err := g.Advise(context.Background(), KindInsights, "how do loyalty programs reward customers", "Total clients: 3")
	require.NoError(t, err)

	p.mu.Lock()
	req := p.last
	p.mu.Unlock()
	assert.True(t, strings.HasPrefix(req.System, "ROLE"))
	assert.Contains(t, req.System, "Relevant context:\nloyalty programs")
	assert.NotContains(t, req.System, "shipping")
	assert.Contains(t, req.System, "System data:\nTotal clients: 3")
	assert.Equal(t, "how do loyalty programs reward customers", req.Prompt)
}

func TestAdvise_NoKnowledgeNoData(t *testing.T) {
	p := &fakeProvider{text: "ok"}
	g, _ := newTestGateway(p)
	_, err := g.Advise(context.Background(), KindInsights, "q", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultRole, p.last.System)
}
