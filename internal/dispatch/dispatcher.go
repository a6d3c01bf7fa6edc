// Package dispatch decides, per message, whether to skip classification,
// serve a cached result, or invoke the classification gateway. Gateway
// failures are routed to the deterministic fallback, so Classify itself
// never fails.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/haasonsaas/attune/internal/classifier"
	"github.com/haasonsaas/attune/internal/intentcache"
	"github.com/haasonsaas/attune/internal/observability"
	"github.com/haasonsaas/attune/pkg/models"
)

// Options tunes the dispatch tiers.
type Options struct {
	// TrivialMaxWords: messages with at most this many words bypass
	// classification. Default: 2.
	TrivialMaxWords int

	// TrivialMinChars: messages shorter than this bypass classification.
	// Default: 10.
	TrivialMinChars int

	// Filler is the closed set of conversational filler that bypasses
	// classification regardless of length. Matched after normalization.
	Filler []string
}

// DefaultOptions returns the standard tier thresholds.
func DefaultOptions() Options {
	return Options{
		TrivialMaxWords: 2,
		TrivialMinChars: 10,
		Filler: []string{
			"ok", "okay", "lol", "lmao", "hey", "hi", "hello", "yeah",
			"yes", "no", "nope", "thanks", "thx", "ty", "k", "kk",
			"sure", "cool", "nice", "haha", "good morning", "good night",
			"sounds good", "got it", "ok sounds good", "see you later",
			"talk to you later", "have a good one",
		},
	}
}

// Dispatcher implements the tiered classification policy.
type Dispatcher struct {
	gateway  classifier.Classifier
	fallback classifier.Classifier
	cache    *intentcache.Cache
	opts     Options
	filler   map[string]bool
	logger   *observability.Logger
	metrics  *observability.Metrics

	// provider labels gateway latency observations.
	provider string

	// group collapses concurrent identical uncached classifications into
	// one gateway call.
	group singleflight.Group

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// New creates a dispatcher. The gateway may be nil, in which case every
// non-bypassed message goes to the fallback. The fallback must be total.
func New(gateway classifier.Classifier, fallback classifier.Classifier, cache *intentcache.Cache, opts Options, logger *observability.Logger, metrics *observability.Metrics) *Dispatcher {
	if opts.TrivialMaxWords <= 0 {
		opts.TrivialMaxWords = 2
	}
	if opts.TrivialMinChars <= 0 {
		opts.TrivialMinChars = 10
	}
	filler := make(map[string]bool, len(opts.Filler))
	for _, f := range opts.Filler {
		filler[normalize(f)] = true
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	provider := "unknown"
	if named, ok := gateway.(interface{ Provider() string }); ok {
		provider = named.Provider()
	}
	return &Dispatcher{
		gateway:  gateway,
		fallback: fallback,
		cache:    cache,
		opts:     opts,
		filler:   filler,
		logger:   logger,
		metrics:  metrics,
		provider: provider,
		now:      time.Now,
	}
}

// Classify runs the tier policy and always returns a valid intent.
//
// Tier 1: trivial messages return the fixed neutral default at zero cost.
// Tier 2: known conversational filler returns the same default.
// Tier 3: cache lookup - skipped entirely when context is supplied, since
// context changes meaning and a cached judgment may not transfer.
// Tier 4: gateway call; on either failure kind the fallback takes over.
func (d *Dispatcher) Classify(ctx context.Context, message string, turns []models.ContextTurn) *models.MessageIntent {
	normalized := normalize(message)

	// Tier 1: trivial bypass.
	if len(strings.Fields(normalized)) <= d.opts.TrivialMaxWords || len([]rune(normalized)) < d.opts.TrivialMinChars {
		d.metrics.ClassificationCounter.WithLabelValues("trivial", string(models.SourceDefault)).Inc()
		return models.NeutralIntent()
	}

	// Tier 2: known-simple bypass.
	if d.filler[normalized] {
		d.metrics.ClassificationCounter.WithLabelValues("filler", string(models.SourceDefault)).Inc()
		return models.NeutralIntent()
	}

	// Tier 3: cache, only when no context shifts the meaning.
	hasContext := len(turns) > 0
	key := intentcache.Key(message)
	if !hasContext && d.cache != nil {
		if cached, ok := d.cache.GetAt(key, d.now()); ok {
			d.metrics.CacheCounter.WithLabelValues("hit").Inc()
			d.metrics.ClassificationCounter.WithLabelValues("cache", string(models.SourceCache)).Inc()
			cached.Source = models.SourceCache
			return cached
		}
		d.metrics.CacheCounter.WithLabelValues("miss").Inc()
	} else if d.cache != nil {
		d.metrics.CacheCounter.WithLabelValues("bypass").Inc()
	}

	// Tier 4: full classification.
	intent := d.invoke(ctx, message, turns, key, hasContext)
	d.metrics.ClassificationCounter.WithLabelValues("gateway", string(intent.Source)).Inc()
	return intent
}

// invoke calls the gateway (collapsing concurrent identical uncached calls)
// and falls back on failure. Cache insertion happens only for context-free
// successes.
func (d *Dispatcher) invoke(ctx context.Context, message string, turns []models.ContextTurn, key string, hasContext bool) *models.MessageIntent {
	if d.gateway == nil {
		return d.runFallback(ctx, message, turns, errors.New("no gateway configured"))
	}

	if hasContext {
		// Context-dependent calls are not collapsed: identical text under
		// different context may legitimately classify differently.
		intent, err := d.timedClassify(ctx, message, turns)
		if err != nil {
			return d.runFallback(ctx, message, turns, err)
		}
		return intent
	}

	// Timing happens inside the group so collapsed callers share one
	// observation, matching the one real endpoint round trip.
	result, err, _ := d.group.Do(key, func() (any, error) {
		return d.timedClassify(ctx, message, nil)
	})
	if err != nil {
		return d.runFallback(ctx, message, turns, err)
	}

	intent := result.(*models.MessageIntent)
	if d.cache != nil {
		d.cache.PutAt(key, intent, d.now())
	}
	// Each caller gets its own copy; singleflight shares one result value.
	return intent.Clone()
}

// timedClassify calls the gateway and records its latency under the
// provider label.
func (d *Dispatcher) timedClassify(ctx context.Context, message string, turns []models.ContextTurn) (*models.MessageIntent, error) {
	timer := prometheus.NewTimer(d.metrics.GatewayDuration.WithLabelValues(d.provider))
	defer timer.ObserveDuration()
	return d.gateway.Classify(ctx, message, turns)
}

// runFallback records the gateway failure and produces the heuristic
// judgment. The fallback is total, so no error can escape.
func (d *Dispatcher) runFallback(ctx context.Context, message string, turns []models.ContextTurn, cause error) *models.MessageIntent {
	var gwErr *classifier.GatewayError
	if errors.As(cause, &gwErr) {
		d.metrics.GatewayErrorCounter.WithLabelValues(gwErr.Provider, string(gwErr.Kind)).Inc()
	}
	d.logger.Warn(ctx, "gateway classification failed, using fallback", "error", cause)

	intent, err := d.fallback.Classify(ctx, message, turns)
	if err != nil || intent == nil {
		// The fallback contract says this cannot happen; defaulting keeps
		// Classify total anyway.
		d.logger.Error(ctx, "fallback classification failed", "error", err)
		return models.NeutralIntent()
	}
	return intent
}

// normalize lowercases and collapses whitespace for tier matching.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
