// Package account implements registration, email verification, login,
// Google login and profile updates
package account

import (
	"bitwise74/account-api/internal/apperr"
	"bitwise74/account-api/internal/limiter"
	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/service"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/security"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type Manager struct {
	store     store.Store
	hasher    security.Hasher
	tokens    *security.TokenIssuer
	notifier  service.Notifier
	limiter   limiter.Limiter
	publicURL string
}

type Opts struct {
	Store    store.Store
	Hasher   security.Hasher
	Tokens   *security.TokenIssuer
	Notifier service.Notifier
	// Login attempts per client. Nil disables the limit.
	Limiter limiter.Limiter
	// Base URL used in links sent by mail, e.g. https://api.example.com
	PublicURL string
}

func New(o Opts) *Manager {
	return &Manager{
		store:     o.Store,
		hasher:    o.Hasher,
		tokens:    o.Tokens,
		notifier:  o.Notifier,
		limiter:   o.Limiter,
		publicURL: strings.TrimRight(o.PublicURL, "/"),
	}
}

// find returns nil without an error when nothing matches
func (m *Manager) find(ctx context.Context, field store.Field, value string) (*model.User, error) {
	u, err := m.store.FindByField(ctx, field, value)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to look up user by %s, %w", field, err)
	}

	return u, nil
}

func (m *Manager) verificationLink(token string) string {
	return m.publicURL + "/verify?token=" + url.QueryEscape(token)
}

func (m *Manager) sendVerification(ctx context.Context, email, token string) error {
	err := m.notifier.Send(ctx, email,
		"Verify Your Email",
		"Click the link to verify your account: "+m.verificationLink(token)+"\n\nThis link will expire in 1 hour.")
	if err != nil {
		return apperr.Internal(fmt.Errorf("failed to send verification email, %w", err))
	}

	return nil
}

// Lookup returns the user whose email or username equals identifier
func (m *Manager) Lookup(ctx context.Context, identifier string) (*model.User, error) {
	if identifier == "" {
		return nil, apperr.BadRequest("Username or email is required")
	}

	u, err := m.find(ctx, store.FieldEmail, identifier)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if u == nil {
		u, err = m.find(ctx, store.FieldUsername, identifier)
		if err != nil {
			return nil, apperr.Internal(err)
		}
	}

	if u == nil {
		return nil, apperr.NotFound("User not found")
	}

	return u, nil
}

func (m *Manager) List(ctx context.Context) ([]model.User, error) {
	users, err := m.store.List(ctx)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to list users, %w", err))
	}

	return users, nil
}
