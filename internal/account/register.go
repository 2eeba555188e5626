package account

import (
	"bitwise74/account-api/internal/apperr"
	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/util"
	"bitwise74/account-api/pkg/validators"
	"context"
	"errors"
	"fmt"
)

type RegisterInput struct {
	Name     string
	Username string
	Password string
	Email    string
}

// Register creates an unverified account and mails a verification link to it.
// The user is written before the mail is sent so a delivery failure never
// leaves a half created account behind.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if in.Name == "" || in.Username == "" || in.Password == "" || in.Email == "" {
		return nil, apperr.BadRequest("Name, username, password and email are required")
	}

	if err := validators.EmailValidator(in.Email); err != nil {
		return nil, apperr.BadRequest(err.Error())
	}

	if err := validators.PasswordValidator(in.Password); err != nil {
		return nil, apperr.BadRequest(err.Error())
	}

	// Best effort, the unique indexes catch whatever slips through
	existing, err := m.find(ctx, store.FieldUsername, in.Username)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if existing != nil {
		return nil, apperr.Conflict("Username already exists")
	}

	existing, err = m.find(ctx, store.FieldEmail, in.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if existing != nil {
		return nil, apperr.Conflict("Email already exists")
	}

	hash, err := m.hasher.GenerateFromPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to hash password, %w", err))
	}

	token, expiresAt, err := m.tokens.IssueVerification(in.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	userID, err := util.NewUserID()
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to generate user ID, %w", err))
	}

	username := in.Username
	u := &model.User{
		ID:                      userID,
		Name:                    in.Name,
		Email:                   in.Email,
		Username:                &username,
		PasswordHash:            &hash,
		Verified:                false,
		VerificationToken:       &token,
		VerificationTokenExpiry: &expiresAt,
	}

	if err := m.store.Insert(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("Username or email already exists")
		}

		return nil, apperr.Internal(fmt.Errorf("failed to create user, %w", err))
	}

	if err := m.sendVerification(ctx, u.Email, token); err != nil {
		return nil, err
	}

	return u, nil
}
