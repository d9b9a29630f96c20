// Package quota gates billable operations on per-identity usage allowances.
// The source of truth is an external billing backend; the gate only ever
// issues point checks and atomic record-one-event calls against it, and
// prefers availability over strict enforcement when the backend is down.
package quota

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// OpClass identifies a billable operation class.
type OpClass string

const (
	OpScrape   OpClass = "scrape-requests"
	OpAnalyze  OpClass = "analyze-requests"
	OpSearch   OpClass = "search-requests"
	OpGenerate OpClass = "generate-requests"
)

// DemoIdentity is the allow-listed trial identity. It never reaches the
// billing backend; its allowance is enforced locally.
const DemoIdentity = "demo"

const (
	defaultDemoAllowance    = 3
	defaultStarterAllowance = 3
)

// Decision is the outcome of a quota check. Reason is set when Allowed is
// false and must be surfaced to the caller as the rejection message.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Remaining int    `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}

// Backend is the external billing service. Check returns ErrUnknownIdentity
// for identities the backend has never seen.
type Backend interface {
	Check(ctx context.Context, identity string, op OpClass) (Decision, error)
	Record(ctx context.Context, identity string, op OpClass) error
}

// Gate enforces per-identity, per-operation-class quotas. A nil backend
// means unconfigured: every check passes.
type Gate struct {
	backend Backend

	mu    sync.Mutex
	local map[string]map[OpClass]int // demo + starter usage, keyed by identity

	demoAllowance    int
	starterAllowance int
}

// Option configures a Gate.
type Option func(*Gate)

// WithDemoAllowance overrides the local demo-identity allowance.
func WithDemoAllowance(n int) Option {
	return func(g *Gate) { g.demoAllowance = n }
}

// WithStarterAllowance overrides the allowance granted to identities the
// billing backend does not know yet.
func WithStarterAllowance(n int) Option {
	return func(g *Gate) { g.starterAllowance = n }
}

// NewGate creates a quota gate backed by the given billing backend. Pass
// nil to run ungated.
func NewGate(backend Backend, opts ...Option) *Gate {
	g := &Gate{
		backend:          backend,
		local:            make(map[string]map[OpClass]int),
		demoAllowance:    defaultDemoAllowance,
		starterAllowance: defaultStarterAllowance,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check reports whether identity may perform one operation of class op.
// Empty identities (anonymous calls) pass unchecked. Backend failures fail
// open: the operation is allowed and the lapse is logged.
func (g *Gate) Check(ctx context.Context, identity string, op OpClass) Decision {
	if identity == "" {
		return Decision{Allowed: true, Remaining: -1}
	}

	if identity == DemoIdentity {
		return g.checkLocal(identity, op, g.demoAllowance, "demo allowance exhausted")
	}

	if g.backend == nil {
		zap.L().Debug("quota: no backend configured, allowing",
			zap.String("identity", identity),
			zap.String("op", string(op)),
		)
		return Decision{Allowed: true, Remaining: -1}
	}

	d, err := g.backend.Check(ctx, identity, op)
	if errors.Is(err, ErrUnknownIdentity) {
		return g.checkLocal(identity, op, g.starterAllowance, "starter allowance exhausted")
	}
	if err != nil {
		zap.L().Warn("quota: backend unreachable, failing open",
			zap.String("identity", identity),
			zap.String("op", string(op)),
			zap.Error(err),
		)
		return Decision{Allowed: true, Remaining: -1}
	}
	return d
}

// Record consumes one usage unit after a successful operation. Callers must
// not invoke Record for failed operations.
func (g *Gate) Record(ctx context.Context, identity string, op OpClass) {
	if identity == "" {
		return
	}

	if identity == DemoIdentity || g.backend == nil {
		g.recordLocal(identity, op)
		return
	}

	if err := g.backend.Record(ctx, identity, op); err != nil {
		if errors.Is(err, ErrUnknownIdentity) {
			g.recordLocal(identity, op)
			return
		}
		zap.L().Warn("quota: failed to record usage",
			zap.String("identity", identity),
			zap.String("op", string(op)),
			zap.Error(err),
		)
	}
}

func (g *Gate) checkLocal(identity string, op OpClass, allowance int, reason string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	used := g.local[identity][op]
	remaining := allowance - used
	if remaining <= 0 {
		return Decision{Allowed: false, Remaining: 0, Reason: reason}
	}
	return Decision{Allowed: true, Remaining: remaining}
}

func (g *Gate) recordLocal(identity string, op OpClass) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.local[identity] == nil {
		g.local[identity] = make(map[OpClass]int)
	}
	g.local[identity][op]++
}
