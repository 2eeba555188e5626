// Package recovery implements the forgot password and reset password flows
package recovery

import (
	"bitwise74/account-api/internal/apperr"
	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/service"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/security"
	"bitwise74/account-api/pkg/validators"
	"context"
	"errors"
	"fmt"
	"strings"
)

type Manager struct {
	store     store.Store
	hasher    security.Hasher
	tokens    *security.TokenIssuer
	notifier  service.Notifier
	publicURL string
}

type Opts struct {
	Store     store.Store
	Hasher    security.Hasher
	Tokens    *security.TokenIssuer
	Notifier  service.Notifier
	PublicURL string
}

func New(o Opts) *Manager {
	return &Manager{
		store:     o.Store,
		hasher:    o.Hasher,
		tokens:    o.Tokens,
		notifier:  o.Notifier,
		publicURL: strings.TrimRight(o.PublicURL, "/"),
	}
}

// RequestReset stores a fresh reset token on the user matching identifier,
// either a username or an email, and mails a reset link to them
func (m *Manager) RequestReset(ctx context.Context, identifier string) error {
	if identifier == "" {
		return apperr.BadRequest("Username or email is required")
	}

	u, err := m.findByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}

	token, expiresAt, err := m.tokens.IssueReset()
	if err != nil {
		return apperr.Internal(err)
	}

	// Replaces any reset that was still pending
	_, err = m.store.UpdateFields(ctx, u.ID, store.Fields{
		store.FieldResetToken:       token,
		store.FieldResetTokenExpiry: expiresAt,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("User not found")
		}

		return apperr.Internal(fmt.Errorf("failed to save reset token, %w", err))
	}

	err = m.notifier.Send(ctx, u.Email,
		"Password Reset Request",
		"Click the link to reset your password: "+m.publicURL+"/reset-password/"+token+"\n\nThis link will expire in 1 hour.")
	if err != nil {
		return apperr.Internal(fmt.Errorf("failed to send reset email, %w", err))
	}

	return nil
}

func (m *Manager) findByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	for _, f := range []store.Field{store.FieldUsername, store.FieldEmail} {
		u, err := m.store.FindByField(ctx, f, identifier)
		if err == nil {
			return u, nil
		}

		if !errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Internal(fmt.Errorf("failed to look up user, %w", err))
		}
	}

	return nil, apperr.NotFound("User not found")
}

// CheckReset reports whether token belongs to a pending, unexpired reset.
// It doesn't modify anything.
func (m *Manager) CheckReset(ctx context.Context, token string) error {
	_, err := m.findPending(ctx, token)
	return err
}

func (m *Manager) findPending(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperr.BadRequest("Invalid or expired reset token")
	}

	u, err := m.store.FindByResetToken(ctx, token, m.tokens.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.BadRequest("Invalid or expired reset token")
		}

		return nil, apperr.Internal(fmt.Errorf("failed to look up reset token, %w", err))
	}

	return u, nil
}

// ConsumeReset sets a new password for the user holding token and clears the
// token in the same write so it can't be used twice
func (m *Manager) ConsumeReset(ctx context.Context, token, newPassword string) error {
	if err := validators.PasswordValidator(newPassword); err != nil {
		return apperr.BadRequest(err.Error())
	}

	u, err := m.findPending(ctx, token)
	if err != nil {
		return err
	}

	hash, err := m.hasher.GenerateFromPassword(newPassword)
	if err != nil {
		return apperr.Internal(fmt.Errorf("failed to hash password, %w", err))
	}

	_, err = m.store.UpdateFieldsIf(ctx, u.ID,
		store.Match{Field: store.FieldResetToken, Value: token},
		store.Fields{
			store.FieldPasswordHash:     hash,
			store.FieldResetToken:       nil,
			store.FieldResetTokenExpiry: nil,
		})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.BadRequest("Invalid or expired reset token")
		}

		return apperr.Internal(fmt.Errorf("failed to reset password, %w", err))
	}

	return nil
}
