package resolver

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/eramap/internal/model"
)

// Failure classes. The inference engine downgrades every one of them to a
// fallback result.
var (
	ErrNotConfigured = eris.New("resolver: not configured")
	ErrUnavailable   = eris.New("resolver: unavailable")
	ErrMalformed     = eris.New("resolver: malformed response")
	ErrEmpty         = eris.New("resolver: no countries returned")
)

// Request is one period resolution request
type Request struct {
	Period string
	Title  string // optional, used for disambiguation
}

// Resolution is the resolver's answer for one period
type Resolution struct {
	Type        string           `json:"type,omitempty"`
	Countries   []string         `json:"countries"`
	Timeframe   string           `json:"timeframe,omitempty"`
	Description string           `json:"description,omitempty"`
	Confidence  model.Confidence `json:"confidence,omitempty"`
}

// Resolver is the AI resolver collaborator
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, req Request) (*Resolution, error)
}

// Checker is implemented by resolvers that can report whether their
// backend is reachable without resolving anything
type Checker interface {
	Available(ctx context.Context) bool
}

// Status reports r's name and, when r implements Checker, whether its
// backend answered. checked is false when no check could be made.
func Status(ctx context.Context, r Resolver) (name string, available, checked bool) {
	if r == nil {
		return "none", false, false
	}
	c, ok := r.(Checker)
	if !ok {
		return r.Name(), false, false
	}
	return r.Name(), c.Available(ctx), true
}

// Failure class names reported in fallback reasoning
const (
	ClassNotConfigured = "not-configured"
	ClassUnavailable   = "unavailable"
	ClassTimeout       = "timeout"
	ClassMalformed     = "malformed"
	ClassEmpty         = "empty"
	ClassCancelled     = "cancelled"
	ClassInvalidInput  = "invalid-input"
)

// Classify maps a resolver error to its failure class
func Classify(err error) string {
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case eris.Is(err, ErrNotConfigured):
		return ClassNotConfigured
	case eris.Is(err, ErrMalformed):
		return ClassMalformed
	case eris.Is(err, ErrEmpty):
		return ClassEmpty
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	case errors.Is(err, context.Canceled):
		return ClassCancelled
	case errors.As(err, &netErr) && netErr.Timeout():
		return ClassTimeout
	default:
		return ClassUnavailable
	}
}

// ParseConfidence converts a free-text confidence into a known level, or ""
func ParseConfidence(s string) model.Confidence {
	c := model.Confidence(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return ""
	}
	return c
}
