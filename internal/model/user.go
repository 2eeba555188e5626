// Package model defines database models
package model

import "time"

// User is a single account. The same struct is persisted as a table row by
// gorm and as an element of the users array by the mongo store, so column
// names and bson keys are kept identical.
type User struct {
	ID       string  `gorm:"primaryKey;size:32" bson:"id" json:"id"`
	Name     string  `bson:"name" json:"name"`
	Email    string  `gorm:"uniqueIndex;not null" bson:"email" json:"email"`
	Username *string `gorm:"uniqueIndex" bson:"username,omitempty" json:"username,omitempty"`
	Image    string  `bson:"image,omitempty" json:"image,omitempty"`
	Verified bool    `gorm:"default:false" bson:"verified" json:"verified"`
	Role     string  `gorm:"index" bson:"role,omitempty" json:"role,omitempty"`

	// Nil for accounts created through Google login
	PasswordHash *string `bson:"password_hash,omitempty" json:"-"`

	// Only set while a verification is pending
	VerificationToken       *string    `gorm:"uniqueIndex" bson:"verification_token,omitempty" json:"-"`
	VerificationTokenExpiry *time.Time `bson:"verification_token_expiry,omitempty" json:"-"`

	// Only set while a password reset is pending
	ResetToken       *string    `gorm:"uniqueIndex" bson:"reset_token,omitempty" json:"-"`
	ResetTokenExpiry *time.Time `bson:"reset_token_expiry,omitempty" json:"-"`

	// Dashboard credentials live in their own namespace
	DashUsername     *string `gorm:"uniqueIndex" bson:"dash_username,omitempty" json:"dashUsername,omitempty"`
	DashPasswordHash *string `bson:"dash_password_hash,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// HasPassword reports whether the account can log in with a password
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// UsernameOrEmpty returns the username or an empty string for accounts without one
func (u *User) UsernameOrEmpty() string {
	if u.Username == nil {
		return ""
	}

	return *u.Username
}
