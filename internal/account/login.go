package account

import (
	"bitwise74/account-api/internal/apperr"
	"bitwise74/account-api/internal/limiter"
	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/store"
	"context"
	"errors"
	"fmt"
)

// Login checks a username and password. client identifies the caller for
// rate limiting, every attempt counts whether it succeeds or not.
func (m *Manager) Login(ctx context.Context, client, username, password string) (*model.User, error) {
	if m.limiter != nil {
		if err := m.limiter.Allow(ctx, client); err != nil {
			if errors.Is(err, limiter.ErrLimited) {
				return nil, apperr.TooManyRequests("Too many login attempts, please try again later.")
			}

			return nil, apperr.Internal(fmt.Errorf("failed to check login limit, %w", err))
		}
	}

	if username == "" || password == "" {
		return nil, apperr.BadRequest("Username and password are required")
	}

	u, err := m.find(ctx, store.FieldUsername, username)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if u == nil {
		return nil, apperr.NotFound("User not found")
	}

	// Accounts created through Google login have nothing to compare against
	if !u.HasPassword() {
		return nil, apperr.Unauthorized("Invalid password or username")
	}

	ok, err := m.hasher.VerifyPasswd(password, *u.PasswordHash)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to verify password, %w", err))
	}

	if !ok {
		return nil, apperr.Unauthorized("Invalid password or username")
	}

	return u, nil
}
