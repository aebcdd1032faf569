package resolver

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/eramap/internal/llm"
	"github.com/ppiankov/eramap/internal/worker"
)

// LLMResolver answers period requests with an LLM provider
type LLMResolver struct {
	provider llm.Provider
	limiter  *worker.Limiter
}

// NewLLMResolver wraps provider. limiter may be nil.
func NewLLMResolver(provider llm.Provider, limiter *worker.Limiter) *LLMResolver {
	return &LLMResolver{provider: provider, limiter: limiter}
}

// Name returns the underlying provider name
func (r *LLMResolver) Name() string {
	return r.provider.Name()
}

// Available reports whether the provider is configured and reachable
func (r *LLMResolver) Available(ctx context.Context) bool {
	return r.provider.IsAvailable(ctx)
}

// Resolve asks the provider and classifies its failures
func (r *LLMResolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, r.provider.Name()); err != nil {
			return nil, eris.Wrap(err, "resolver: rate limit wait")
		}
	}

	resp, err := r.provider.ResolvePeriod(ctx, llm.PeriodRequest{Period: req.Period, Title: req.Title})
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return nil, err
		case eris.Is(err, llm.ErrMalformedAnswer):
			return nil, eris.Wrapf(ErrMalformed, "%s: %v", r.provider.Name(), err)
		default:
			return nil, eris.Wrapf(ErrUnavailable, "%s: %v", r.provider.Name(), err)
		}
	}
	if len(resp.Countries) == 0 {
		return nil, ErrEmpty
	}

	return &Resolution{
		Type:        resp.Type,
		Countries:   resp.Countries,
		Timeframe:   resp.Timeframe,
		Description: resp.Description,
		Confidence:  ParseConfidence(resp.Confidence),
	}, nil
}
