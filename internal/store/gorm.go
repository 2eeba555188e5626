package store

import (
	"bitwise74/account-api/internal/model"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// GormStore keeps one row per user. Email, username, dashboard username and
// both tokens carry unique indexes so uniqueness holds even when two requests
// race past the application level checks.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(model.User{}); err != nil {
		return nil, fmt.Errorf("failed to automigrate users table, %w", err)
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) FindByField(ctx context.Context, field Field, value string) (*model.User, error) {
	if err := checkLookup(field); err != nil {
		return nil, err
	}

	var u model.User

	err := s.db.WithContext(ctx).
		Where(string(field)+" = ?", value).
		First(&u).
		Error
	if err != nil {
		return nil, translate(err)
	}

	return &u, nil
}

func (s *GormStore) FindByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	var u model.User

	err := s.db.WithContext(ctx).
		Where("reset_token = ? AND reset_token_expiry > ?", token, now).
		First(&u).
		Error
	if err != nil {
		return nil, translate(err)
	}

	return &u, nil
}

func (s *GormStore) Insert(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		return errors.New("user has no ID")
	}

	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return translate(err)
	}

	return nil
}

func (s *GormStore) UpdateFields(ctx context.Context, id string, f Fields) (*model.User, error) {
	return s.update(ctx, id, nil, f)
}

func (s *GormStore) UpdateFieldsIf(ctx context.Context, id string, guard Match, f Fields) (*model.User, error) {
	if err := checkLookup(guard.Field); err != nil {
		return nil, err
	}

	return s.update(ctx, id, &guard, f)
}

func (s *GormStore) update(ctx context.Context, id string, guard *Match, f Fields) (*model.User, error) {
	if err := checkFields(f); err != nil {
		return nil, err
	}

	updates := make(map[string]any, len(f))
	for k, v := range f {
		updates[string(k)] = v
	}

	q := s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id)

	if guard != nil {
		q = q.Where(string(guard.Field)+" = ?", guard.Value)
	}

	r := q.Updates(updates)
	if r.Error != nil {
		return nil, translate(r.Error)
	}

	if r.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.FindByField(ctx, FieldID, id)
}

func (s *GormStore) List(ctx context.Context) ([]model.User, error) {
	var users []model.User

	err := s.db.WithContext(ctx).
		Order("created_at asc").
		Find(&users).
		Error
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (s *GormStore) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var cleared int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := tx.Model(&model.User{}).
			Where("verification_token_expiry < ?", now).
			Updates(map[string]any{
				string(FieldVerificationToken):       nil,
				string(FieldVerificationTokenExpiry): nil,
			})
		if r.Error != nil {
			return r.Error
		}
		cleared += r.RowsAffected

		r = tx.Model(&model.User{}).
			Where("reset_token_expiry < ?", now).
			Updates(map[string]any{
				string(FieldResetToken):       nil,
				string(FieldResetTokenExpiry): nil,
			})
		if r.Error != nil {
			return r.Error
		}
		cleared += r.RowsAffected

		return nil
	})
	if err != nil {
		return 0, err
	}

	return cleared, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w, %v", ErrDuplicate, err)
	}

	// Drivers that don't translate their errors
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
		return fmt.Errorf("%w, %v", ErrDuplicate, err)
	}

	return err
}
