package account

import (
	"bitwise74/account-api/internal/apperr"
	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/security"
	"context"
	"errors"
	"fmt"
)

// VerifyEmail marks the account holding token as verified. The token has to
// carry a valid signature and also still be the one stored on the account,
// which makes it single use and lets a newer token revoke an older one.
func (m *Manager) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperr.TokenInvalid("Invalid token")
	}

	email, err := m.tokens.ParseVerification(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, apperr.TokenExpired("Token has expired")
		}

		return nil, apperr.TokenInvalid("Invalid or expired token")
	}

	u, err := m.find(ctx, store.FieldVerificationToken, token)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if u == nil || u.Email != email {
		return nil, apperr.TokenInvalid("User not found or invalid token")
	}

	if u.VerificationTokenExpiry == nil || m.tokens.Now().After(*u.VerificationTokenExpiry) {
		return nil, apperr.TokenExpired("Token has expired")
	}

	updated, err := m.store.UpdateFieldsIf(ctx, u.ID,
		store.Match{Field: store.FieldVerificationToken, Value: token},
		store.Fields{
			store.FieldVerified:                true,
			store.FieldVerificationToken:       nil,
			store.FieldVerificationTokenExpiry: nil,
		})
	if err != nil {
		// Someone else used or replaced the token in the meantime
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.TokenInvalid("User not found or invalid token")
		}

		return nil, apperr.Internal(fmt.Errorf("failed to verify user, %w", err))
	}

	return updated, nil
}
