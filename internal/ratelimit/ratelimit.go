// Package ratelimit enforces per-identity upload budgets over fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Class names an endpoint family with its own budget.
type Class string

const (
	ClassMedia   Class = "media"
	ClassBase64  Class = "base64"
	ClassPrivate Class = "private"
)

// Window is the length of every budget window.
const Window = 10 * time.Minute

// Rule is the request budget for one class.
type Rule struct {
	Limit  int
	Window time.Duration
}

// DefaultRules are the production budgets.
var DefaultRules = map[Class]Rule{
	ClassMedia:   {Limit: 30, Window: Window},
	ClassBase64:  {Limit: 60, Window: Window},
	ClassPrivate: {Limit: 15, Window: Window},
}

// Store counts hits per key. Incr returns the count including this hit and
// the moment the key's window ends.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter applies the class rules. A disabled limiter admits everything
// without touching the store.
type Limiter struct {
	store   Store
	rules   map[Class]Rule
	enabled bool
}

func New(store Store, rules map[Class]Rule, enabled bool) *Limiter {
	if rules == nil {
		rules = DefaultRules
	}
	return &Limiter{store: store, rules: rules, enabled: enabled}
}

// Enabled reports whether budgets are being enforced.
func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow records a hit for identity in class and decides whether to admit it.
func (l *Limiter) Allow(ctx context.Context, class Class, identity string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	rule, ok := l.rules[class]
	if !ok {
		return Decision{}, fmt.Errorf("no rate limit rule for class %q", class)
	}

	count, resetAt, err := l.store.Incr(ctx, key(class, identity), rule.Window)
	if err != nil {
		return Decision{}, err
	}
	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= rule.Limit,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func key(class Class, identity string) string {
	return "ratelimit:" + string(class) + ":" + identity
}
