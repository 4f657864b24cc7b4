package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mveljko/gatehouse/pkg/kvx"
	"github.com/mveljko/gatehouse/pkg/slogx"
)

// Actions counted by the rate limiter. Each action keeps its own counter
// namespace, so hammering the login form never eats into the registration
// budget and vice versa.
const (
	ActionLogin    = "login"
	ActionRegister = "register"
	ActionSession  = "session"
)

// Policy is one action's fixed-window budget.
type Policy struct {
	Limit  int64
	Window time.Duration
}

// DefaultPolicies matches the lockout behaviour users see: five login
// attempts per source address per quarter hour, ten registrations, five
// session operations.
var DefaultPolicies = map[string]Policy{
	ActionLogin:    {Limit: 5, Window: 15 * time.Minute},
	ActionRegister: {Limit: 10, Window: 15 * time.Minute},
	ActionSession:  {Limit: 5, Window: 15 * time.Minute},
}

// RateLimiter enforces fixed-window counters in the shared key-value
// store, so limits hold across replicas. The check and the increment are
// one atomic store operation; two racing requests can never both slip
// under the limit.
//
// It fails closed: if the store is unreachable the attempt is denied.
// These counters guard credential endpoints, and an outage that disabled
// them would turn a store failure into an unthrottled attack window.
type RateLimiter struct {
	Store    kvx.Store
	Policies map[string]Policy
}

// Allow counts one attempt of the action by the given identity (normally
// the client IP) and reports whether it is within the window budget. A
// denied attempt does not extend the window.
func (l *RateLimiter) Allow(ctx context.Context, action, identity string) bool {
	policy, ok := l.policy(action)
	if !ok {
		// Unknown action is a programming error; deny rather than
		// silently skipping the limit.
		slogx.FromContext(ctx).Error("rate limit check for unknown action",
			slog.String("action", action))
		return false
	}

	key := "auth:rl:" + action + ":" + identity
	allowed, err := l.Store.Hit(ctx, key, policy.Limit, policy.Window)
	if err != nil {
		slogx.FromContext(ctx).Error("rate limit store unavailable, denying",
			slog.String("action", action),
			slog.String("error", err.Error()))
		return false
	}
	return allowed
}

func (l *RateLimiter) policy(action string) (Policy, bool) {
	if l.Policies != nil {
		if p, ok := l.Policies[action]; ok {
			return p, true
		}
	}
	p, ok := DefaultPolicies[action]
	return p, ok
}
