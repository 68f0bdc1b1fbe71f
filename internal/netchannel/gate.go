package netchannel

import (
	"context"
	"log/slog"

	"github.com/contentshield/contentshield/internal/classify"
	"github.com/contentshield/contentshield/internal/prefs"
	"github.com/contentshield/contentshield/internal/rulesengine"
)

// Gate runs outgoing channels through the classification service and applies
// the decision to the channel.
type Gate struct {
	logger   *slog.Logger
	svc      *classify.Service
	prefs    *prefs.Store
	resolver rulesengine.DomainResolver
}

// GateConfig is the configuration structure for a gate.
type GateConfig struct {
	// Logger is used to log the decisions of the gate.  It must not be nil.
	Logger *slog.Logger

	// Service makes the classification decisions.  It must not be nil.
	Service *classify.Service

	// Prefs holds the enable switch.  It must not be nil.
	Prefs *prefs.Store

	// Resolver resolves hosts into schemeless sites.  It must not be nil.
	Resolver rulesengine.DomainResolver
}

// NewGate returns a new gate.  c must not be nil.
func NewGate(c *GateConfig) (g *Gate) {
	return &Gate{
		logger:   c.Logger,
		svc:      c.Service,
		prefs:    c.Prefs,
		resolver: c.Resolver,
	}
}

// Process classifies ch and applies the decision.  blocked is true if the
// channel was cancelled.  When the subsystem is disabled, channels pass
// through unclassified.
func (g *Gate) Process(ctx context.Context, ch Channel) (blocked bool) {
	if !g.prefs.GetBool(prefs.Enabled) {
		return false
	}

	req := NewRequest(ch, g.resolver)

	if res := g.svc.ClassifyForCancel(ctx, req); res.Hit() {
		g.logger.DebugContext(ctx, "blocking channel", "url", req.URL)
		Cancel(ch)

		return true
	}

	if res := g.svc.ClassifyForAnnotate(ctx, req); res.Hit() {
		g.logger.DebugContext(ctx, "annotating channel", "url", req.URL)
		Annotate(ch)
	}

	return false
}
