// Package dashboard handles the admin dashboard credentials, which are kept
// apart from the regular username and password of an account
package dashboard

import (
	"bitwise74/account-api/internal/apperr"
	"bitwise74/account-api/internal/limiter"
	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/service"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/security"
	"bitwise74/account-api/pkg/util"
	"context"
	"errors"
	"fmt"
)

const (
	AdminRole = "admin"

	generatedPasswordLength = 10
)

type Manager struct {
	store    store.Store
	hasher   security.Hasher
	notifier service.Notifier
	limiter  limiter.Limiter
}

type Opts struct {
	Store    store.Store
	Hasher   security.Hasher
	Notifier service.Notifier
	// Nil disables the limit
	Limiter limiter.Limiter
}

func New(o Opts) *Manager {
	return &Manager{
		store:    o.Store,
		hasher:   o.Hasher,
		notifier: o.Notifier,
		limiter:  o.Limiter,
	}
}

func (m *Manager) DashLogin(ctx context.Context, client, username, password string) (*model.User, error) {
	if m.limiter != nil {
		if err := m.limiter.Allow(ctx, client); err != nil {
			if errors.Is(err, limiter.ErrLimited) {
				return nil, apperr.TooManyRequests("Too many login attempts, please try again later.")
			}

			return nil, apperr.Internal(fmt.Errorf("failed to check login limit, %w", err))
		}
	}

	if username == "" || password == "" {
		return nil, apperr.BadRequest("Username and password is required")
	}

	u, err := m.store.FindByField(ctx, store.FieldDashUsername, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}

		return nil, apperr.Internal(fmt.Errorf("failed to look up dashboard user, %w", err))
	}

	if u.DashPasswordHash == nil || *u.DashPasswordHash == "" {
		return nil, apperr.Unauthorized("Invalid password or username")
	}

	ok, err := m.hasher.VerifyPasswd(password, *u.DashPasswordHash)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to verify password, %w", err))
	}

	if !ok {
		return nil, apperr.Unauthorized("Invalid password or username")
	}

	return u, nil
}

// RotateAdminPassword replaces the dashboard password of the admin with a
// generated one and mails it to them in plain text. The password is meant to
// be changed right after logging in with it.
func (m *Manager) RotateAdminPassword(ctx context.Context) error {
	admin, err := m.store.FindByField(ctx, store.FieldRole, AdminRole)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Admin not found")
		}

		return apperr.Internal(fmt.Errorf("failed to look up admin, %w", err))
	}

	pass, err := util.RandPassword(generatedPasswordLength)
	if err != nil {
		return apperr.Internal(fmt.Errorf("failed to generate password, %w", err))
	}

	hash, err := m.hasher.GenerateFromPassword(pass)
	if err != nil {
		return apperr.Internal(fmt.Errorf("failed to hash password, %w", err))
	}

	_, err = m.store.UpdateFields(ctx, admin.ID, store.Fields{
		store.FieldDashPasswordHash: hash,
	})
	if err != nil {
		return apperr.Internal(fmt.Errorf("failed to save dashboard password, %w", err))
	}

	err = m.notifier.Send(ctx, admin.Email,
		"Your New dashboard Password",
		"Your new password is: "+pass+"\n\nPlease change it after logging in.")
	if err != nil {
		return apperr.Internal(fmt.Errorf("failed to send dashboard password, %w", err))
	}

	return nil
}
