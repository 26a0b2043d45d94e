// Package quota implements the per-session message quota for the chat relay.
//
// The quota is a fixed-window counter: a session may send Policy.Limit
// messages within Policy.Window of its first message, after which the window
// and counter restart. Bursts straddling a window boundary are permitted.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"portfolio-functions/internal/domain"
)

const (
	DefaultLimit  = 20
	DefaultWindow = time.Hour
)

// ErrEmptySession is returned when a caller supplies a blank session ID.
var ErrEmptySession = errors.New("quota: session id must not be empty")

// Policy configures the fixed window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicy returns the 20 messages per hour policy.
func DefaultPolicy() Policy {
	return Policy{Limit: DefaultLimit, Window: DefaultWindow}
}

func (p Policy) normalized() Policy {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Window <= 0 {
		p.Window = DefaultWindow
	}
	return p
}

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed     bool
	Count       int
	Remaining   int
	WindowStart time.Time
}

// Store owns the session records. Admit must apply the full check-and-increment
// for one session atomically with respect to other callers of the same store.
type Store interface {
	Admit(ctx context.Context, sessionID string, now time.Time, policy Policy) (Decision, error)
}

// Gate admits or rejects chat messages per session.
type Gate struct {
	store  Store
	policy Policy
	now    func() time.Time
}

type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGate(store Store, policy Policy, opts ...Option) (*Gate, error) {
	if store == nil {
		return nil, errors.New("quota: store must not be nil")
	}
	g := &Gate{
		store:  store,
		policy: policy.normalized(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Policy returns the effective policy.
func (g *Gate) Policy() Policy {
	return g.policy
}

// Admit consumes one message from the session's quota if any is left.
func (g *Gate) Admit(ctx context.Context, sessionID string) (Decision, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Decision{}, ErrEmptySession
	}
	d, err := g.store.Admit(ctx, sessionID, g.now(), g.policy)
	if err != nil {
		return Decision{}, fmt.Errorf("quota: admit session: %w", err)
	}
	return d, nil
}

// decide applies the fixed-window rule to rec and returns the record to
// persist. ok is false when no record existed for the session.
func decide(rec domain.SessionQuota, ok bool, now time.Time, p Policy) (domain.SessionQuota, Decision) {
	if !ok || rec.Expired(now, p.Window) {
		rec.Count, rec.StartTime = 0, now
	}
	if rec.Count >= p.Limit {
		return rec, Decision{Allowed: false, Count: rec.Count, Remaining: 0, WindowStart: rec.StartTime}
	}
	rec.Count++
	return rec, Decision{Allowed: true, Count: rec.Count, Remaining: p.Limit - rec.Count, WindowStart: rec.StartTime}
}
