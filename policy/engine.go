// Package policy guards orchestrator actions with Rego rules.
//
// Policies live in package lightsout and add messages to the deny set:
//
//	package lightsout
//
//	deny contains msg if {
//		input.action == "stop"
//		input.resource.tags["lights-out:protected"] == "true"
//		msg := sprintf("%s is protected", [input.resource.id])
//	}
//
// An empty or undefined deny set allows the action.
package policy

import (
	"context"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/lightsout/telemetry"
	"github.com/yairfalse/lightsout/types"
)

// DenyQuery is the Rego query every guard evaluates
const DenyQuery = "data.lightsout.deny"

// Guard evaluates compiled deny rules before an action runs.
// A prepared query is safe for concurrent evaluation.
type Guard struct {
	query       rego.PreparedEvalQuery
	modules     []string
	environment string
	logger      *telemetry.Logger
	tracer      trace.Tracer
}

// Option configures a Guard
type Option func(*Guard)

// WithEnvironment sets input.environment for every evaluation
func WithEnvironment(env string) Option {
	return func(g *Guard) {
		g.environment = env
	}
}

// NewGuard compiles the given Rego modules, keyed by module name
func NewGuard(ctx context.Context, modules map[string]string, opts ...Option) (*Guard, error) {
	if len(modules) == 0 {
		return nil, fmt.Errorf("no policy modules provided")
	}

	g := &Guard{
		logger: telemetry.NewLogger("policy"),
		tracer: otel.Tracer("lightsout-policy"),
	}
	for _, opt := range opts {
		opt(g)
	}

	ctx, span := g.tracer.Start(ctx, "policy.compile",
		trace.WithAttributes(attribute.Int("policy.modules", len(modules))))
	defer span.End()

	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)

	regoOpts := []func(*rego.Rego){rego.Query(DenyQuery)}
	for _, name := range names {
		regoOpts = append(regoOpts, rego.Module(name, modules[name]))
	}

	prepared, err := rego.New(regoOpts...).PrepareForEval(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to compile policies: %w", err)
	}

	g.query = prepared
	g.modules = names

	g.logger.WithContext(ctx).Info().
		Strs("modules", names).
		Msg("policies loaded")

	return g, nil
}

// Modules returns the loaded module names in sorted order
func (g *Guard) Modules() []string {
	return g.modules
}

// Check evaluates the deny rules for an action on a resource
func (g *Guard) Check(ctx context.Context, action types.Action, res types.DiscoveredResource) (Decision, error) {
	ctx, span := g.tracer.Start(ctx, "policy.check",
		trace.WithAttributes(
			attribute.String("resource.type", res.ResourceType),
			attribute.String("resource.id", res.ResourceID),
			attribute.String("action", string(action)),
		))
	defer span.End()

	input := NewInput(action, g.environment, res)
	results, err := g.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		span.RecordError(err)
		return Decision{}, fmt.Errorf("policy evaluation failed for %s: %w", res.ResourceID, err)
	}

	reasons := denyReasons(results)
	decision := Decision{Allowed: len(reasons) == 0, Reasons: reasons}

	span.SetAttributes(attribute.Bool("policy.allowed", decision.Allowed))
	if !decision.Allowed {
		g.logger.WithContext(ctx).Info().
			Str("resource_id", res.ResourceID).
			Str("action", string(action)).
			Strs("reasons", reasons).
			Msg("action denied by policy")
	}

	return decision, nil
}

// denyReasons flattens the deny set. Sets arrive as []interface{};
// non-string members are formatted so they still count as a denial.
func denyReasons(results rego.ResultSet) []string {
	var reasons []string
	for _, res := range results {
		for _, expr := range res.Expressions {
			switch v := expr.Value.(type) {
			case []interface{}:
				for _, item := range v {
					if s, ok := item.(string); ok {
						reasons = append(reasons, s)
					} else {
						reasons = append(reasons, fmt.Sprint(item))
					}
				}
			case bool:
				if v {
					reasons = append(reasons, "denied")
				}
			case string:
				reasons = append(reasons, v)
			}
		}
	}
	sort.Strings(reasons)
	return reasons
}
