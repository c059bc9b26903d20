package auth

import (
	"context"
	"slices"

	"github.com/lavacar-app/lavacar/internal/session"
)

// Routes a guard can redirect to
const (
	RouteLogin     = "/(auth)/login"
	RouteUserHome  = "/(protected)/(user)"
	RouteAgentHome = "/(protected)/(agent)"
)

// Decision is the result of a guard check
type Decision struct {
	Allowed  bool
	Redirect string
	Outcome  Outcome
}

// Guard admits a caller only when the resolved role is one of the allowed
// roles, and otherwise names where the caller should go instead
type Guard struct {
	resolver *Resolver
}

// NewGuard creates a guard backed by resolver
func NewGuard(resolver *Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// Check resolves the session once. With no allowed roles any authenticated
// role is admitted.
func (g *Guard) Check(ctx context.Context, allowed ...session.Role) (Decision, error) {
	outcome, err := g.resolver.Resolve(ctx)
	if err != nil {
		return Decision{}, err
	}
	return Decide(outcome, allowed...), nil
}

// Decide maps a resolved outcome to a guard decision
func Decide(outcome Outcome, allowed ...session.Role) Decision {
	d := Decision{Outcome: outcome}
	switch {
	case !outcome.Authenticated:
		d.Redirect = RouteLogin
	case len(allowed) == 0 || slices.Contains(allowed, outcome.Role):
		d.Allowed = true
	default:
		d.Redirect = HomeRoute(outcome.Role)
	}
	return d
}

// HomeRoute returns the landing route for a role
func HomeRoute(role session.Role) string {
	switch role {
	case session.RoleAgent:
		return RouteAgentHome
	case session.RoleUser:
		return RouteUserHome
	}
	return RouteLogin
}
