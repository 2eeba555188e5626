package account

import (
	"bitwise74/account-api/internal/apperr"
	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/validators"
	"context"
	"errors"
	"fmt"
)

// ProfileUpdate holds the fields a user wants to change. Empty strings are
// left untouched.
type ProfileUpdate struct {
	ID          string
	Name        string
	Username    string
	Email       string
	NewPassword string
	OldPassword string
}

// UpdateProfile writes the supplied fields of a user in a single update.
// Changing the email drops the verified flag and sends a new verification
// link once the update went through. Supplied values equal to the current
// ones leave the record as it is.
func (m *Manager) UpdateProfile(ctx context.Context, in ProfileUpdate) (*model.User, error) {
	if in.ID == "" {
		return nil, apperr.BadRequest("User ID is required")
	}

	if in.Name == "" && in.Username == "" && in.Email == "" && in.NewPassword == "" {
		return nil, apperr.BadRequest("No fields to update")
	}

	u, err := m.find(ctx, store.FieldID, in.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if u == nil {
		return nil, apperr.BadRequest("User not found")
	}

	f := store.Fields{}

	if in.Username != "" && in.Username != u.UsernameOrEmpty() {
		owner, err := m.find(ctx, store.FieldUsername, in.Username)
		if err != nil {
			return nil, apperr.Internal(err)
		}

		if owner != nil && owner.ID != u.ID {
			return nil, apperr.Conflict("Username already exists")
		}

		f[store.FieldUsername] = in.Username
	}

	var newToken string

	if in.Email != "" && in.Email != u.Email {
		if err := validators.EmailValidator(in.Email); err != nil {
			return nil, apperr.BadRequest(err.Error())
		}

		owner, err := m.find(ctx, store.FieldEmail, in.Email)
		if err != nil {
			return nil, apperr.Internal(err)
		}

		if owner != nil && owner.ID != u.ID {
			return nil, apperr.Conflict("Email already exists")
		}

		token, expiresAt, err := m.tokens.IssueVerification(in.Email)
		if err != nil {
			return nil, apperr.Internal(err)
		}

		newToken = token

		f[store.FieldEmail] = in.Email
		f[store.FieldVerified] = false
		f[store.FieldVerificationToken] = token
		f[store.FieldVerificationTokenExpiry] = expiresAt
	}

	if in.NewPassword != "" {
		if err := validators.PasswordValidator(in.NewPassword); err != nil {
			return nil, apperr.BadRequest(err.Error())
		}

		// Google only accounts have no old password to check
		if u.HasPassword() {
			if in.OldPassword == "" {
				return nil, apperr.BadRequest("Old password is required")
			}

			ok, err := m.hasher.VerifyPasswd(in.OldPassword, *u.PasswordHash)
			if err != nil {
				return nil, apperr.Internal(fmt.Errorf("failed to verify password, %w", err))
			}

			if !ok {
				return nil, apperr.BadRequest("Old password is incorrect")
			}
		}

		hash, err := m.hasher.GenerateFromPassword(in.NewPassword)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("failed to hash password, %w", err))
		}

		f[store.FieldPasswordHash] = hash
	}

	if in.Name != "" && in.Name != u.Name {
		f[store.FieldName] = in.Name
	}

	if len(f) == 0 {
		return u, nil
	}

	updated, err := m.store.UpdateFields(ctx, u.ID, f)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, apperr.Conflict("Username or email already exists")
		case errors.Is(err, store.ErrNotFound):
			return nil, apperr.BadRequest("User not found")
		}

		return nil, apperr.Internal(fmt.Errorf("failed to update user, %w", err))
	}

	if newToken != "" {
		if err := m.sendVerification(ctx, updated.Email, newToken); err != nil {
			return nil, err
		}
	}

	return updated, nil
}
