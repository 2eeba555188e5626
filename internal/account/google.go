package account

import (
	"bitwise74/account-api/internal/apperr"
	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/util"
	"context"
	"errors"
	"fmt"
)

type UpsertResult string

const (
	UpsertCreated UpsertResult = "created"
	UpsertUpdated UpsertResult = "updated"
)

// GoogleUpsert creates a verified, passwordless account for email or
// refreshes the name and image of the existing one
func (m *Manager) GoogleUpsert(ctx context.Context, name, email, image string) (*model.User, UpsertResult, error) {
	if name == "" || email == "" || image == "" {
		return nil, "", apperr.BadRequest("image/name/email required")
	}

	existing, err := m.find(ctx, store.FieldEmail, email)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}

	if existing != nil {
		u, err := m.refreshGoogleProfile(ctx, existing.ID, name, email, image)
		if err != nil {
			return nil, "", err
		}

		return u, UpsertUpdated, nil
	}

	userID, err := util.NewUserID()
	if err != nil {
		return nil, "", apperr.Internal(fmt.Errorf("failed to generate user ID, %w", err))
	}

	u := &model.User{
		ID:       userID,
		Name:     name,
		Email:    email,
		Image:    image,
		Verified: true,
	}

	err = m.store.Insert(ctx, u)
	if err == nil {
		return u, UpsertCreated, nil
	}

	if !errors.Is(err, store.ErrDuplicate) {
		return nil, "", apperr.Internal(fmt.Errorf("failed to create user, %w", err))
	}

	// A concurrent request created the account first
	existing, err = m.find(ctx, store.FieldEmail, email)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}

	if existing == nil {
		return nil, "", apperr.Conflict("User already exists")
	}

	u, err = m.refreshGoogleProfile(ctx, existing.ID, name, email, image)
	if err != nil {
		return nil, "", err
	}

	return u, UpsertUpdated, nil
}

func (m *Manager) refreshGoogleProfile(ctx context.Context, id, name, email, image string) (*model.User, error) {
	u, err := m.store.UpdateFields(ctx, id, store.Fields{
		store.FieldName:  name,
		store.FieldEmail: email,
		store.FieldImage: image,
	})
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to update user, %w", err))
	}

	return u, nil
}
