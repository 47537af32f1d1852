package advisory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-crm-backend/internal/search"
)

// Kind names an advisory request type.
type Kind string

const (
	KindChurn    Kind = "churn"
	KindOffers   Kind = "offers"
	KindPricing  Kind = "pricing"
	KindRestock  Kind = "restock"
	KindInsights Kind = "insights"
)

// DefaultRole is the fixed system instruction sent with every request.
const DefaultRole = "You are an expert in customer experience and CRM for small retail " +
	"businesses. Give concrete, actionable recommendations grounded in the data provided. " +
	"Be concise and use short bullet points."

// Advice is a successful advisory answer.
type Advice struct {
	Kind        Kind      `json:"kind"`
	Text        string    `json:"text"`
	Cached      bool      `json:"cached"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Gateway runs cache lookup, provider call and cache write for one request.
// Concurrent misses for the same fingerprint share a single provider call.
type Gateway struct {
	cache    *Cache
	provider Provider
	ttl      time.Duration
	role     string
	now      func() time.Time

	knowledge  search.Index
	kbTopK     int
	kbMinScore float64

	group singleflight.Group
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithRole overrides DefaultRole.
func WithRole(role string) GatewayOption {
	return func(g *Gateway) {
		if strings.TrimSpace(role) != "" {
			g.role = role
		}
	}
}

// WithKnowledge appends up to k snippets scoring above minScore to the system
// instruction. The snippets do not take part in the fingerprint.
func WithKnowledge(idx search.Index, k int, minScore float64) GatewayOption {
	return func(g *Gateway) {
		g.knowledge = idx
		g.kbTopK = k
		g.kbMinScore = minScore
	}
}

// WithNow replaces time.Now for GeneratedAt stamps.
func WithNow(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGateway wires a cache and a provider. ttl is the lifetime of cached answers.
func NewGateway(cache *Cache, provider Provider, ttl time.Duration, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		cache:    cache,
		provider: provider,
		ttl:      ttl,
		role:     DefaultRole,
		now:      time.Now,
		kbTopK:   3,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

type flightResult struct {
	text string
	at   time.Time
}

// Advise answers prompt over the data snapshot. A provider failure is
// returned as a *ProviderError and leaves the cache untouched. Cache read or
// write errors are logged and otherwise ignored.
func (g *Gateway) Advise(ctx context.Context, kind Kind, prompt, data string) (Advice, error) {
	tr := otel.Tracer("advisory/Gateway")
	ctx, span := tr.Start(ctx, "Advise", trace.WithAttributes(attribute.String("advice.kind", string(kind))))
	defer span.End()

	fp := Fingerprint(prompt, data)
	span.SetAttributes(attribute.String("advice.fingerprint", fp))
	logger := log.Ctx(ctx).With().Str("kind", string(kind)).Str("fingerprint", fp[:12]).Logger()

	text, ok, err := g.cache.Get(ctx, fp)
	if err != nil {
		logger.Warn().Err(err).Msg("advice cache read failed")
	}
	if ok {
		adviceReqs.WithLabelValues(string(kind), outcomeHit).Inc()
		span.SetAttributes(attribute.Bool("advice.cached", true))
		return Advice{Kind: kind, Text: text, Cached: true, GeneratedAt: g.now().UTC()}, nil
	}

	// The shared call must outlive any single waiter's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(fp, func() (any, error) {
		return g.generate(flightCtx, kind, fp, prompt, data)
	})

	select {
	case <-ctx.Done():
		adviceReqs.WithLabelValues(string(kind), outcomeError).Inc()
		return Advice{}, &ProviderError{Reason: "request cancelled", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			adviceReqs.WithLabelValues(string(kind), outcomeError).Inc()
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, "provider failure")
			logger.Error().Err(res.Err).Msg("advisory provider failed")
			return Advice{}, res.Err
		}
		adviceReqs.WithLabelValues(string(kind), outcomeMiss).Inc()
		r := res.Val.(flightResult)
		return Advice{Kind: kind, Text: r.text, Cached: false, GeneratedAt: r.at}, nil
	}
}

func (g *Gateway) generate(ctx context.Context, kind Kind, fp, prompt, data string) (flightResult, error) {
	start := time.Now()
	text, err := g.provider.Complete(ctx, Request{
		System: g.systemFor(prompt, data),
		Prompt: prompt,
	})
	providerLat.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		var perr *ProviderError
		if !errors.As(err, &perr) {
			err = &ProviderError{Reason: "completion failed", Err: err}
		}
		return flightResult{}, err
	}

	if perr := g.cache.Put(ctx, fp, text, g.ttl); perr != nil {
		log.Ctx(ctx).Warn().Err(perr).Str("kind", string(kind)).Msg("advice cache write failed")
	}
	return flightResult{text: text, at: g.now().UTC()}, nil
}

// systemFor builds the system instruction: role, then retrieved knowledge,
// then the data snapshot.
func (g *Gateway) systemFor(prompt, data string) string {
	var b strings.Builder
	b.WriteString(g.role)
	if snippets := g.relevant(prompt); len(snippets) > 0 {
		b.WriteString("\n\nRelevant context:\n")
		b.WriteString(strings.Join(snippets, "\n\n"))
	}
	if strings.TrimSpace(data) != "" {
		b.WriteString("\n\nSystem data:\n")
		b.WriteString(data)
	}
	return b.String()
}

func (g *Gateway) relevant(prompt string) []string {
	if g.knowledge == nil || g.kbTopK <= 0 {
		return nil
	}
	var out []string
	for _, r := range g.knowledge.TopK(prompt, g.kbTopK) {
		if r.Score > g.kbMinScore {
			out = append(out, r.Snippet)
		}
	}
	return out
}
