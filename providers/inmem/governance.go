package inmem

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/rickchristie/agentcore"
)

// Effect is what a governance rule does with a matching action.
type Effect string

const (
	EffectAllow           Effect = "allow"
	EffectDeny            Effect = "deny"
	EffectRequireApproval Effect = "require_approval"
)

// Rule matches actions by glob pattern (path.Match syntax, e.g. "payments.*").
type Rule struct {
	Pattern string
	Effect  Effect
	Reason  string
}

// Governance is a GovernanceProvider that evaluates rules in order; the first rule
// whose pattern matches the action decides. Actions no rule matches get the default
// effect.
type Governance struct {
	mu            sync.RWMutex
	rules         []Rule
	defaultEffect Effect
}

// NewGovernance creates a Governance with the given default effect and rules.
func NewGovernance(defaultEffect Effect, rules ...Rule) (*Governance, error) {
	g := &Governance{defaultEffect: defaultEffect}
	if err := validEffect(defaultEffect); err != nil {
		return nil, err
	}
	for _, r := range rules {
		if err := g.AddRule(r); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddRule appends a rule. The pattern must be a valid path.Match pattern.
func (g *Governance) AddRule(r Rule) error {
	if err := validEffect(r.Effect); err != nil {
		return err
	}
	if _, err := path.Match(r.Pattern, ""); err != nil {
		return fmt.Errorf("inmem: invalid rule pattern %q: %w", r.Pattern, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules = append(g.rules, r)
	return nil
}

// Check evaluates action against the rules.
func (g *Governance) Check(
	ctx context.Context,
	action string,
	_ map[string]any,
) (agentcore.PolicyDecision, error) {
	if err := ctx.Err(); err != nil {
		return agentcore.PolicyDecision{}, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, r := range g.rules {
		if ok, _ := path.Match(r.Pattern, action); ok {
			return decision(r.Effect, r.Reason), nil
		}
	}
	return decision(g.defaultEffect, "default policy"), nil
}

func decision(e Effect, reason string) agentcore.PolicyDecision {
	switch e {
	case EffectDeny:
		return agentcore.PolicyDecision{Allowed: false, Reason: reason}
	case EffectRequireApproval:
		return agentcore.PolicyDecision{Allowed: true, Reason: reason, RequiresApproval: true}
	default:
		return agentcore.PolicyDecision{Allowed: true, Reason: reason}
	}
}

func validEffect(e Effect) error {
	switch e {
	case EffectAllow, EffectDeny, EffectRequireApproval:
		return nil
	}
	return fmt.Errorf("inmem: unknown policy effect %q", e)
}

var _ agentcore.GovernanceProvider = (*Governance)(nil)
