// Package store contains the persistence layer for user accounts
package store

import (
	"bitwise74/account-api/internal/model"
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("record already exists")
	ErrUnknownField = errors.New("unknown field")
)

// Field names a persisted user attribute. The value doubles as the SQL column
// and the bson key of the embedded document.
type Field string

const (
	FieldID                      Field = "id"
	FieldName                    Field = "name"
	FieldEmail                   Field = "email"
	FieldUsername                Field = "username"
	FieldPasswordHash            Field = "password_hash"
	FieldImage                   Field = "image"
	FieldVerified                Field = "verified"
	FieldVerificationToken       Field = "verification_token"
	FieldVerificationTokenExpiry Field = "verification_token_expiry"
	FieldResetToken              Field = "reset_token"
	FieldResetTokenExpiry        Field = "reset_token_expiry"
	FieldRole                    Field = "role"
	FieldDashUsername            Field = "dash_username"
	FieldDashPasswordHash        Field = "dash_password_hash"
)

// lookupFields can be used with FindByField and as update guards
var lookupFields = map[Field]bool{
	FieldID:                true,
	FieldEmail:             true,
	FieldUsername:          true,
	FieldVerificationToken: true,
	FieldResetToken:        true,
	FieldDashUsername:      true,
	FieldRole:              true,
}

var writableFields = map[Field]bool{
	FieldName:                    true,
	FieldEmail:                   true,
	FieldUsername:                true,
	FieldPasswordHash:            true,
	FieldImage:                   true,
	FieldVerified:                true,
	FieldVerificationToken:       true,
	FieldVerificationTokenExpiry: true,
	FieldResetToken:              true,
	FieldResetTokenExpiry:        true,
	FieldRole:                    true,
	FieldDashUsername:            true,
	FieldDashPasswordHash:        true,
}

// Fields is a set of attribute writes. A nil value clears the attribute.
type Fields map[Field]any

// Match is a single equality predicate
type Match struct {
	Field Field
	Value string
}

// Store is implemented by every user persistence backend.
//
// All updates are qualified by the record ID; implementations never address
// a record by its position.
type Store interface {
	FindByField(ctx context.Context, field Field, value string) (*model.User, error)
	// FindByResetToken only matches tokens that expire after now
	FindByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error)
	Insert(ctx context.Context, u *model.User) error
	UpdateFields(ctx context.Context, id string, f Fields) (*model.User, error)
	// UpdateFieldsIf only writes when the record still matches guard. Returns
	// ErrNotFound when it doesn't.
	UpdateFieldsIf(ctx context.Context, id string, guard Match, f Fields) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	// ClearExpiredTokens drops pending verification and reset tokens that
	// expired before now and returns how many were cleared
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
	Close() error
}

func checkLookup(f Field) error {
	if !lookupFields[f] {
		return fmt.Errorf("%w: %s", ErrUnknownField, f)
	}

	return nil
}

func checkFields(f Fields) error {
	if len(f) == 0 {
		return errors.New("no fields to update")
	}

	for k := range f {
		if !writableFields[k] {
			return fmt.Errorf("%w: %s", ErrUnknownField, k)
		}
	}

	return nil
}

// uniqueValues returns the uniquely indexed fields set by f that carry a value
func uniqueValues(f Fields) []Match {
	var out []Match

	for _, k := range []Field{FieldEmail, FieldUsername, FieldDashUsername} {
		v, ok := f[k]
		if !ok {
			continue
		}

		if s, ok := derefString(v); ok && s != "" {
			out = append(out, Match{Field: k, Value: s})
		}
	}

	return out
}

func derefString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case *string:
		if s == nil {
			return "", false
		}
		return *s, true
	}

	return "", false
}
