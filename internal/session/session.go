// Package session owns the locally persisted authentication state: the bearer
// token, the role it was issued for and the last known profile. It is the
// only writer of that state; everything else reads it through a *Session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lavacar-app/lavacar/internal/storage"
)

// Storage keys
const (
	KeyToken                = "auth_token"
	KeyProfile              = "user_data"
	KeyRole                 = "user_role"
	KeyNotificationAsked    = "notification_permission_asked"
	KeyNotificationsEnabled = "notifications_enabled"
)

var (
	ErrNoSession   = errors.New("no active session")
	ErrEmptyToken  = errors.New("empty token")
	ErrInvalidRole = errors.New("invalid role")
)

// Role is the account type a token belongs to
type Role string

const (
	RoleNone  Role = ""
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// ParseRole converts a stored or user-supplied role name
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAgent:
		return Role(s), nil
	}
	return RoleNone, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// EventKind describes what happened to the session
type EventKind string

const (
	EventEstablished EventKind = "established"
	EventRefreshed   EventKind = "refreshed"
	EventCleared     EventKind = "cleared"
)

// Reason explains why a session was cleared
type Reason string

const (
	ReasonLogout   Reason = "logout"
	ReasonExpired  Reason = "expired"  // 401 on an authenticated request
	ReasonRejected Reason = "rejected" // neither role accepted the token
)

// Event is delivered to OnChange subscribers
type Event struct {
	Kind   EventKind
	Reason Reason
	Role   Role
}

// Session is the single owner of the token/role/profile triple
type Session struct {
	mu      sync.Mutex
	secrets storage.Store
	data    storage.Store
	logger  zerolog.Logger

	lmu       sync.Mutex
	listeners map[int]func(Event)
	nextID    int
}

// New creates a session over a secret store (token) and a data store
// (role, profile, flags). Both may be the same store.
func New(secrets, data storage.Store, logger zerolog.Logger) *Session {
	return &Session{
		secrets:   secrets,
		data:      data,
		logger:    logger,
		listeners: make(map[int]func(Event)),
	}
}

// Token returns the stored bearer token, or "" when logged out
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token(ctx)
}

func (s *Session) token(ctx context.Context) (string, error) {
	token, err := s.secrets.Get(ctx, KeyToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

// Establish stores a freshly issued token together with its role and profile
func (s *Session) Establish(ctx context.Context, token string, role Role, profile any) error {
	if token == "" {
		return ErrEmptyToken
	}
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}

	s.mu.Lock()
	prev, err := s.snapshot(ctx, KeyRole, KeyProfile)
	if err == nil {
		err = s.writeProfile(ctx, role, profile)
		if err == nil {
			err = s.secrets.Set(ctx, KeyToken, token)
		}
		if err != nil {
			// Role and profile must not outlive a token that was never stored
			if rbErr := s.restore(ctx, prev); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to roll back profile: %w", rbErr))
			}
		}
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to establish session: %w", err)
	}

	s.logger.Debug().Str("role", string(role)).Msg("Session established")
	s.notify(Event{Kind: EventEstablished, Role: role})
	return nil
}

// SetToken replaces the token of the current session, keeping its role
func (s *Session) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	s.mu.Lock()
	current, err := s.token(ctx)
	if err == nil && current == "" {
		err = ErrNoSession
	}
	if err == nil {
		err = s.secrets.Set(ctx, KeyToken, token)
	}
	role := s.role(ctx)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.notify(Event{Kind: EventRefreshed, Role: role})
	return nil
}

// SaveProfile caches the profile returned by a whoami probe and records
// the role that accepted the current token
func (s *Session) SaveProfile(ctx context.Context, role Role, profile any) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.token(ctx)
	if err != nil {
		return err
	}
	if current == "" {
		return ErrNoSession
	}
	return s.writeProfile(ctx, role, profile)
}

func (s *Session) writeProfile(ctx context.Context, role Role, profile any) error {
	blob, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := s.data.Set(ctx, KeyRole, string(role)); err != nil {
		return err
	}
	return s.data.Set(ctx, KeyProfile, string(blob))
}

// snapshot reads keys from the data store; absent keys are left out
func (s *Session) snapshot(ctx context.Context, keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		v, err := s.data.Get(ctx, key)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			continue
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		values[key] = v
	}
	return values, nil
}

// restore puts the role and profile back to a snapshot
func (s *Session) restore(ctx context.Context, prev map[string]string) error {
	var errs []error
	for _, key := range []string{KeyRole, KeyProfile} {
		if v, ok := prev[key]; ok {
			errs = append(errs, s.data.Set(ctx, key, v))
		} else {
			errs = append(errs, s.data.Delete(ctx, key))
		}
	}
	return errors.Join(errs...)
}

// Profile returns the cached role and profile blob. The blob is a UI
// convenience and may be stale; it is nil when nothing is cached.
func (s *Session) Profile(ctx context.Context) (Role, json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := s.data.Get(ctx, KeyProfile)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.role(ctx), nil, nil
		}
		return RoleNone, nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return s.role(ctx), json.RawMessage(blob), nil
}

func (s *Session) role(ctx context.Context) Role {
	v, err := s.data.Get(ctx, KeyRole)
	if err != nil {
		return RoleNone
	}
	role, err := ParseRole(v)
	if err != nil {
		return RoleNone
	}
	return role
}

// Clear tears the session down: token, role, cached profile and the
// notification flags are removed together.
func (s *Session) Clear(ctx context.Context, reason Reason) error {
	s.mu.Lock()
	role := s.role(ctx)
	// The token goes first so a failure never leaves it without its role
	err := s.secrets.Delete(ctx, KeyToken)
	if err == nil {
		err = s.data.Delete(ctx, KeyRole, KeyProfile, KeyNotificationAsked, KeyNotificationsEnabled)
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	s.logger.Debug().Str("reason", string(reason)).Msg("Session cleared")
	s.notify(Event{Kind: EventCleared, Reason: reason, Role: role})
	return nil
}

// Data exposes the non-secret store for local flags that live and die with
// the session
func (s *Session) Data() storage.Store {
	return s.data
}

// OnChange subscribes fn to session events and returns an unsubscribe func.
// Callbacks run synchronously on the goroutine that changed the session.
func (s *Session) OnChange(fn func(Event)) func() {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Session) notify(ev Event) {
	s.lmu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
