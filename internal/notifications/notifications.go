// Package notifications remembers whether the user was asked about
// notifications and what they answered. The flags live next to the session
// and are removed with it.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/lavacar-app/lavacar/internal/session"
	"github.com/lavacar-app/lavacar/internal/storage"
)

// Preferences reads and writes the notification flags
type Preferences struct {
	store storage.Store
}

// New creates preferences backed by store, normally session.Data()
func New(store storage.Store) *Preferences {
	return &Preferences{store: store}
}

// HasAsked reports whether the user already answered the permission prompt
func (p *Preferences) HasAsked(ctx context.Context) (bool, error) {
	return p.flag(ctx, session.KeyNotificationAsked)
}

// MarkAsked records that the prompt was shown
func (p *Preferences) MarkAsked(ctx context.Context) error {
	return p.set(ctx, session.KeyNotificationAsked, true)
}

// Enabled reports whether the user opted in
func (p *Preferences) Enabled(ctx context.Context) (bool, error) {
	return p.flag(ctx, session.KeyNotificationsEnabled)
}

// SetEnabled stores the user's choice
func (p *Preferences) SetEnabled(ctx context.Context, enabled bool) error {
	return p.set(ctx, session.KeyNotificationsEnabled, enabled)
}

// Answer records the answer to the permission prompt
func (p *Preferences) Answer(ctx context.Context, enabled bool) error {
	if err := p.SetEnabled(ctx, enabled); err != nil {
		return err
	}
	return p.MarkAsked(ctx)
}

// Reset forgets both flags so the prompt is shown again
func (p *Preferences) Reset(ctx context.Context) error {
	if err := p.store.Delete(ctx, session.KeyNotificationAsked, session.KeyNotificationsEnabled); err != nil {
		return fmt.Errorf("failed to reset notification preferences: %w", err)
	}
	return nil
}

// flag treats anything but "true" as false
func (p *Preferences) flag(ctx context.Context, key string) (bool, error) {
	v, err := p.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v == "true", nil
}

func (p *Preferences) set(ctx context.Context, key string, v bool) error {
	if err := p.store.Set(ctx, key, strconv.FormatBool(v)); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}
