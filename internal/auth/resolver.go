package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lavacar-app/lavacar/internal/api"
	"github.com/lavacar-app/lavacar/internal/session"
)

// Reason explains an unauthenticated outcome
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonNoToken     Reason = "no_token"
	ReasonRejected    Reason = "rejected"    // both probes answered with a failure
	ReasonUnreachable Reason = "unreachable" // neither probe got an HTTP answer
)

// Outcome is the result of resolving the stored session
type Outcome struct {
	Authenticated bool
	Role          session.Role
	Profile       json.RawMessage
	Reason        Reason
}

// Prober checks the stored token against one account type
type Prober interface {
	CheckUserAccount(ctx context.Context) api.Result[json.RawMessage]
	CheckAgentAccount(ctx context.Context) api.Result[json.RawMessage]
}

// ResolverOptions tune the resolver
type ResolverOptions struct {
	// KeepTokenWhenUnreachable skips the teardown when the backend could not
	// be reached at all, so an offline start does not sign the user out
	KeepTokenWhenUnreachable bool
}

// Resolver determines whether the stored token belongs to a user, an agent
// or nobody
type Resolver struct {
	prober  Prober
	session *session.Session
	opts    ResolverOptions
	logger  zerolog.Logger
}

// NewResolver creates a session resolver
func NewResolver(prober Prober, sess *session.Session, opts ResolverOptions, logger zerolog.Logger) *Resolver {
	return &Resolver{
		prober:  prober,
		session: sess,
		opts:    opts,
		logger:  logger,
	}
}

// Resolve probes the user endpoint, then the agent endpoint, stopping at the
// first that accepts the token. Without a token no request is made. When both
// reject it the session is cleared.
func (r *Resolver) Resolve(ctx context.Context) (Outcome, error) {
	token, err := r.session.Token(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return Outcome{Reason: ReasonNoToken}, nil
	}

	userRes := r.prober.CheckUserAccount(ctx)
	if errors.Is(userRes.Err, api.ErrCanceled) {
		return Outcome{}, fmt.Errorf("session check interrupted: %w", userRes.Err)
	}
	if accepted(userRes) {
		return r.authenticated(ctx, session.RoleUser, userRes.Data)
	}
	r.logger.Debug().Int("status", userRes.Status).Msg("User probe failed, trying agent")

	agentRes := r.prober.CheckAgentAccount(ctx)
	if errors.Is(agentRes.Err, api.ErrCanceled) {
		return Outcome{}, fmt.Errorf("session check interrupted: %w", agentRes.Err)
	}
	if accepted(agentRes) {
		return r.authenticated(ctx, session.RoleAgent, agentRes.Data)
	}
	r.logger.Debug().Int("status", agentRes.Status).Msg("Agent probe failed")

	if userRes.Unreachable() && agentRes.Unreachable() {
		if r.opts.KeepTokenWhenUnreachable {
			r.logger.Warn().Msg("Backend unreachable, keeping stored session")
			return Outcome{Reason: ReasonUnreachable}, nil
		}
		if err := r.session.Clear(ctx, session.ReasonRejected); err != nil {
			return Outcome{}, fmt.Errorf("failed to clear session: %w", err)
		}
		return Outcome{Reason: ReasonUnreachable}, nil
	}

	r.logger.Info().Msg("Stored token rejected for both roles, clearing session")
	if err := r.session.Clear(ctx, session.ReasonRejected); err != nil {
		return Outcome{}, fmt.Errorf("failed to clear session: %w", err)
	}
	return Outcome{Reason: ReasonRejected}, nil
}

func (r *Resolver) authenticated(ctx context.Context, role session.Role, profile json.RawMessage) (Outcome, error) {
	if err := r.session.SaveProfile(ctx, role, profile); err != nil {
		return Outcome{}, fmt.Errorf("failed to save profile: %w", err)
	}
	return Outcome{Authenticated: true, Role: role, Profile: profile}, nil
}

// accepted mirrors the backend contract: a success with a non-empty payload
func accepted(res api.Result[json.RawMessage]) bool {
	data := bytes.TrimSpace(res.Data)
	return res.Success && len(data) > 0 && !bytes.Equal(data, []byte("null"))
}
