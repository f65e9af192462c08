// Package ratelimit implements the request-rate governor protecting the
// gateway and the upstream provider. Admission is a points-and-window budget
// per traffic class: each key starts a window with the full budget, every
// request consumes one point, and exhausting the budget blocks the key for
// the class's block duration regardless of window resets.
package ratelimit

import (
	"sync"
	"time"

	"evolution-gateway/internal/common/errors"
)

// Class names a rate-limit policy bucket.
type Class string

const (
	// ClassGeneral covers the management API surface, keyed by caller IP.
	ClassGeneral Class = "general"
	// ClassWebhook covers inbound webhook ingestion, keyed by caller IP.
	ClassWebhook Class = "webhook"
	// ClassMessage covers outbound message sends, keyed by tenant+IP.
	ClassMessage Class = "message"
)

// Budget is the immutable policy for one traffic class.
type Budget struct {
	Points int           `json:"points"`
	Window time.Duration `json:"window"`
	Block  time.Duration `json:"block"`
}

// DefaultBudgets returns the budgets the gateway ships with.
func DefaultBudgets() map[Class]Budget {
	return map[Class]Budget{
		ClassGeneral: {Points: 100, Window: time.Minute, Block: 15 * time.Minute},
		ClassWebhook: {Points: 1000, Window: time.Minute, Block: 5 * time.Minute},
		ClassMessage: {Points: 50, Window: time.Minute, Block: 10 * time.Minute},
	}
}

// Decision is the outcome of one admission check. Rejection is a normal
// outcome, not an error.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// record tracks consumption for one key within one class.
type record struct {
	remaining     int
	windowResetAt time.Time
	blockedUntil  time.Time
	lastSeen      time.Time
}

const (
	defaultMaxKeys    = 10000
	defaultSweepEvery = time.Minute
)

// Governor admits or rejects requests in O(1) per call. All per-key state is
// in-memory and owned by the governor; idle keys are swept opportunistically
// during Consume so memory stays bounded without background timers.
type Governor struct {
	mu        sync.Mutex
	budgets   map[Class]Budget
	records   map[Class]map[string]*record
	lastSweep time.Time

	maxKeys    int
	sweepEvery time.Duration

	now func() time.Time
}

// NewGovernor creates a governor for the given budgets. Budgets with
// non-positive points or window are a configuration error.
func NewGovernor(budgets map[Class]Budget) (*Governor, error) {
	if len(budgets) == 0 {
		return nil, errors.ConfigError("at least one rate budget is required")
	}
	records := make(map[Class]map[string]*record, len(budgets))
	for class, budget := range budgets {
		if budget.Points <= 0 {
			return nil, errors.ConfigError("rate budget points must be positive").
				WithContext("class", string(class))
		}
		if budget.Window <= 0 {
			return nil, errors.ConfigError("rate budget window must be positive").
				WithContext("class", string(class))
		}
		if budget.Block < 0 {
			return nil, errors.ConfigError("rate budget block must not be negative").
				WithContext("class", string(class))
		}
		records[class] = make(map[string]*record)
	}

	return &Governor{
		budgets:    budgets,
		records:    records,
		maxKeys:    defaultMaxKeys,
		sweepEvery: defaultSweepEvery,
		now:        time.Now,
	}, nil
}

// Budget returns the configured budget for a class.
func (g *Governor) Budget(class Class) (Budget, bool) {
	budget, ok := g.budgets[class]
	return budget, ok
}

// Consume performs one atomic check-and-decrement for key within class.
// Unknown classes admit the request; classes are fixed at startup so this
// only guards against programming mistakes.
func (g *Governor) Consume(key string, class Class) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	budget, ok := g.budgets[class]
	if !ok {
		return Decision{Allowed: true}
	}

	now := g.now()
	g.maybeSweep(now)

	keys := g.records[class]
	rec, exists := keys[key]
	if !exists {
		rec = &record{
			remaining:     budget.Points,
			windowResetAt: now.Add(budget.Window),
		}
		keys[key] = rec
		if g.totalKeys() > g.maxKeys {
			g.sweep(now)
		}
	}
	rec.lastSeen = now

	// Window reset happens before the block check: a block outlives the
	// nominal window and keeps rejecting until it elapses.
	if !now.Before(rec.windowResetAt) {
		rec.remaining = budget.Points
		rec.windowResetAt = now.Add(budget.Window)
	}

	if !rec.blockedUntil.IsZero() {
		if now.Before(rec.blockedUntil) {
			return Decision{
				Allowed:    false,
				Remaining:  0,
				RetryAfter: rec.blockedUntil.Sub(now),
			}
		}
		rec.blockedUntil = time.Time{}
	}

	if rec.remaining <= 0 {
		retryAfter := rec.windowResetAt.Sub(now)
		if budget.Block > 0 {
			rec.blockedUntil = now.Add(budget.Block)
			retryAfter = budget.Block
		}
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: retryAfter,
		}
	}

	rec.remaining--
	return Decision{
		Allowed:   true,
		Remaining: rec.remaining,
	}
}

// ActiveKeys reports how many keys are currently tracked across all classes.
func (g *Governor) ActiveKeys() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.totalKeys()
}

func (g *Governor) totalKeys() int {
	total := 0
	for _, keys := range g.records {
		total += len(keys)
	}
	return total
}

// maybeSweep runs the idle-key sweep when enough time has passed since the
// last one. Callers must hold g.mu.
func (g *Governor) maybeSweep(now time.Time) {
	if now.Sub(g.lastSweep) < g.sweepEvery {
		return
	}
	g.sweep(now)
}

// sweep drops records idle past their window plus block duration. Callers
// must hold g.mu.
func (g *Governor) sweep(now time.Time) {
	for class, keys := range g.records {
		budget := g.budgets[class]
		idle := budget.Window + budget.Block
		for key, rec := range keys {
			if now.Sub(rec.lastSeen) > idle {
				delete(keys, key)
			}
		}
	}
	g.lastSweep = now
}
