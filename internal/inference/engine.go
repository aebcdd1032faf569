package inference

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/eramap/internal/model"
	"github.com/ppiankov/eramap/internal/regions"
	"github.com/ppiankov/eramap/internal/resolver"
	"github.com/ppiankov/eramap/internal/store"
)

// Input errors returned by ApplyManual
var (
	ErrInvalidPeriod = eris.New("period must not be empty")
	ErrNoCodes       = eris.New("no valid ISO alpha-2 codes given")
)

var errResolverPanic = eris.New("resolver panicked")

const (
	defaultRequestTimeout = 20 * time.Second
	defaultNegativeTTL    = time.Minute
	suggestionLimit       = 5
)

// Options tunes the engine
type Options struct {
	// RequestTimeout bounds one shared resolver call
	RequestTimeout time.Duration

	// NegativeTTL is how long a failed period is answered from memory.
	// Negative disables the memo.
	NegativeTTL time.Duration
}

// Engine resolves free-text periods to ISO country codes
type Engine struct {
	overrides   store.Repository
	resolutions store.Repository
	resolver    resolver.Resolver

	group    singleflight.Group
	negative *gocache.Cache
	timeout  time.Duration

	resolverCalls atomic.Int64
	now           func() time.Time
}

// NewEngine wires the stores and the optional AI resolver. r may be nil.
func NewEngine(overrides, resolutions store.Repository, r resolver.Resolver, opts Options) *Engine {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ttl := opts.NegativeTTL
	if ttl == 0 {
		ttl = defaultNegativeTTL
	}

	var negative *gocache.Cache
	if ttl > 0 {
		negative = gocache.New(ttl, 2*ttl)
	}

	return &Engine{
		overrides:   overrides,
		resolutions: resolutions,
		resolver:    r,
		negative:    negative,
		timeout:     timeout,
		now:         time.Now,
	}
}

// ResolverCalls returns how many resolver requests the engine has issued
func (e *Engine) ResolverCalls() int64 {
	return e.resolverCalls.Load()
}

// negativeEntry remembers why a period failed
type negativeEntry struct {
	class  string
	detail string
}

// shared is the outcome of one de-duplicated resolver call
type shared struct {
	res *resolver.Resolution
}

// Infer resolves q through the override store, static table, heuristics,
// resolution cache and AI resolver, in that order. It never returns an
// error: every failure degrades to a fallback result.
func (e *Engine) Infer(ctx context.Context, q model.InferenceQuery) (result model.InferenceResult) {
	period := strings.TrimSpace(q.Era)

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("inference panicked", zap.String("period", period), zap.Any("panic", r))
			result = e.fallback(period, resolver.ClassUnavailable, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if period == "" {
		return e.fallback(period, resolver.ClassInvalidInput, "period is empty")
	}

	if res, ok := e.fromOverrides(period); ok {
		return res
	}
	if res, ok := e.fromTable(period); ok {
		return res
	}
	if res, ok := e.fromHeuristics(period, q); ok {
		return res
	}
	if res, ok := e.fromCache(period); ok {
		return res
	}
	return e.fromResolver(ctx, period, q.Title)
}

func (e *Engine) fromOverrides(period string) (model.InferenceResult, bool) {
	key, entry, ok := store.FindFold(e.overrides, period)
	if !ok {
		return model.InferenceResult{}, false
	}
	reasoning := "custom override"
	if key != period {
		reasoning = fmt.Sprintf("custom override %q", key)
	}
	if entry.Description != "" {
		reasoning += ": " + entry.Description
	}
	zap.L().Debug("resolved from override store", zap.String("period", period), zap.String("key", key))
	return e.result(period, entry.Countries, model.ConfidenceHigh, model.SourceCustom, entry.Timeframe, reasoning), true
}

func (e *Engine) fromTable(period string) (model.InferenceResult, bool) {
	countries, timeframe, ok := regions.Lookup(period)
	if !ok {
		return model.InferenceResult{}, false
	}
	name, _ := regions.Canonical(period)
	zap.L().Debug("resolved from static table", zap.String("period", period), zap.String("name", name))
	return e.result(period, countries, model.ConfidenceHigh, model.SourceHardcoded, timeframe, fmt.Sprintf("known period %q", name)), true
}

func (e *Engine) fromHeuristics(period string, q model.InferenceQuery) (model.InferenceResult, bool) {
	rule, matched, ok := regions.MatchHeuristic(period, q.StartYear, q.EndYear)
	if !ok {
		return model.InferenceResult{}, false
	}
	zap.L().Debug("resolved by heuristic", zap.String("period", period), zap.String("rule", rule.Name))
	return e.result(period, rule.Countries, model.ConfidenceMedium, model.SourceTemporal, rule.Window(), rule.Name+": "+rule.Reasoning(matched)), true
}

func (e *Engine) fromCache(period string) (model.InferenceResult, bool) {
	entry, ok := e.resolutions.Get(period)
	if !ok || len(entry.Countries) == 0 {
		return model.InferenceResult{}, false
	}
	confidence := capConfidence(entry.Confidence, model.ConfidenceMedium)
	reasoning := "previously resolved by AI (cached)"
	if entry.Description != "" {
		reasoning += ": " + entry.Description
	}
	zap.L().Debug("resolved from resolution cache", zap.String("period", period))
	return e.result(period, entry.Countries, confidence, model.SourceAI, entry.Timeframe, reasoning), true
}

func (e *Engine) fromResolver(ctx context.Context, period, title string) model.InferenceResult {
	if e.resolver == nil {
		return e.fallback(period, resolver.ClassNotConfigured, "no AI resolver configured")
	}
	if neg, ok := e.negativeGet(period); ok {
		return e.fallback(period, neg.class, neg.detail+" (recent failure, not retried)")
	}

	// Calls are shared per period, so the first caller's title steers the
	// resolver. The source tag below follows each caller's own title.
	ch := e.group.DoChan(period, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
		return e.resolve(callCtx, period, title)
	})

	select {
	case <-ctx.Done():
		return e.fallback(period, resolver.ClassCancelled, "caller gave up waiting for the resolver")
	case out := <-ch:
		if out.Err != nil {
			return e.fallback(period, resolver.Classify(out.Err), out.Err.Error())
		}
		sh := out.Val.(shared)
		src := model.SourceAI
		if title != "" {
			src = model.SourceTitleAnalysis
		}
		confidence := sh.res.Confidence
		if confidence == "" {
			confidence = model.ConfidenceMedium
		}
		reasoning := "resolved by AI"
		if sh.res.Description != "" {
			reasoning += ": " + sh.res.Description
		}
		return e.result(period, sh.res.Countries, confidence, src, sh.res.Timeframe, reasoning)
	}
}

// resolve performs the single shared resolver call for period and records
// its outcome in the resolution cache or the negative memo.
func (e *Engine) resolve(ctx context.Context, period, title string) (val interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("resolver panicked", zap.String("period", period), zap.Any("panic", r))
			err = eris.Wrapf(errResolverPanic, "%v", r)
			e.negativeSet(period, negativeEntry{class: resolver.ClassUnavailable, detail: err.Error()})
		}
	}()

	e.resolverCalls.Add(1)
	start := e.now()
	res, err := e.resolver.Resolve(ctx, resolver.Request{Period: period, Title: title})
	if err == nil && (res == nil || len(res.Countries) == 0) {
		err = resolver.ErrEmpty
	}
	if err != nil {
		class := resolver.Classify(err)
		zap.L().Warn("AI resolution failed",
			zap.String("period", period),
			zap.String("resolver", e.resolver.Name()),
			zap.String("class", class),
			zap.Error(err),
		)
		e.negativeSet(period, negativeEntry{class: class, detail: err.Error()})
		return nil, err
	}

	res.Countries = regions.NormalizeCodes(res.Countries)
	src := model.SourceAI
	if title != "" {
		src = model.SourceTitleAnalysis
	}
	entry := e.result(period, res.Countries, res.Confidence, src, res.Timeframe, "").ToEntry()
	entry.Description = res.Description
	if err := e.resolutions.Set(period, entry); err != nil {
		zap.L().Warn("failed to cache AI resolution", zap.String("period", period), zap.Error(err))
	}
	e.negativeDelete(period)

	zap.L().Debug("resolved by AI",
		zap.String("period", period),
		zap.String("resolver", e.resolver.Name()),
		zap.Strings("countries", res.Countries),
		zap.Duration("elapsed", e.now().Sub(start)),
	)
	return shared{res: res}, nil
}

// ApplyManual writes user-supplied codes for period straight into the
// override store, bypassing resolution.
func (e *Engine) ApplyManual(period string, codes []string, timeframe, description string) (model.InferenceResult, error) {
	return e.SetOverride(period, codes, timeframe, description, model.SourceManual)
}

// Evict drops one cached AI resolution so the next Infer asks the resolver again
func (e *Engine) Evict(period string) error {
	e.negativeDelete(period)
	return e.resolutions.Delete(period)
}

// ClearCache drops every cached AI resolution
func (e *Engine) ClearCache() error {
	if e.negative != nil {
		e.negative.Flush()
	}
	return e.resolutions.Clear()
}

// Suggest returns known period names similar to query
func (e *Engine) Suggest(query string, limit int) []string {
	candidates := regions.Names()
	if records, err := e.overrides.List(); err == nil {
		candidates = append(candidates, store.Periods(records)...)
	}
	return regions.Suggest(query, candidates, limit)
}

func (e *Engine) fallback(period, class, detail string) model.InferenceResult {
	reasoning := fmt.Sprintf("no countries resolved (%s)", class)
	if detail != "" {
		reasoning += ": " + detail
	}
	res := e.result(period, nil, model.ConfidenceLow, model.SourceFallback, "", reasoning)
	if period != "" {
		res.Suggestions = e.Suggest(period, suggestionLimit)
	}
	return res
}

func (e *Engine) result(period string, countries []string, confidence model.Confidence, src model.Source, timeframe, reasoning string) model.InferenceResult {
	out := make([]string, len(countries))
	copy(out, countries)
	return model.InferenceResult{
		Period:     period,
		Countries:  out,
		Confidence: confidence,
		Source:     src,
		Timeframe:  timeframe,
		Reasoning:  reasoning,
		InferredAt: e.now().UTC(),
	}
}

func (e *Engine) negativeGet(period string) (negativeEntry, bool) {
	if e.negative == nil {
		return negativeEntry{}, false
	}
	v, ok := e.negative.Get(period)
	if !ok {
		return negativeEntry{}, false
	}
	return v.(negativeEntry), true
}

func (e *Engine) negativeSet(period string, entry negativeEntry) {
	if e.negative == nil || entry.class == resolver.ClassNotConfigured {
		return
	}
	e.negative.SetDefault(period, entry)
}

func (e *Engine) negativeDelete(period string) {
	if e.negative != nil {
		e.negative.Delete(period)
	}
}

// capConfidence limits c to ceiling; unknown levels become ceiling
func capConfidence(c, ceiling model.Confidence) model.Confidence {
	if !c.Valid() || c.Rank() > ceiling.Rank() {
		return ceiling
	}
	return c
}
