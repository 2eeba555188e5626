// Package testutil holds helpers shared by the package tests
package testutil

import (
	"bitwise74/account-api/db"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/security"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const Secret = "test-secret"

// NewStore returns a GormStore backed by a fresh SQLite file
func NewStore(t *testing.T) *store.GormStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	conn, err := db.NewSQLite(path)
	require.NoError(t, err)

	s, err := store.NewGormStore(conn)
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })

	return s
}

// NewHasher returns an argon2id hasher cheap enough for tests
func NewHasher() *security.ArgonHash {
	return security.New().WithCost(1024, 1, 1)
}

// Clock is a settable time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// NewTokens returns a token issuer that reads time from clock
func NewTokens(t *testing.T, clock *Clock) *security.TokenIssuer {
	t.Helper()

	tokens, err := security.NewTokenIssuer(security.TokenIssuerOpts{
		Secret: Secret,
		Now:    clock.Now,
	})
	require.NoError(t, err)

	return tokens
}

type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailbox records every message instead of sending it. Setting Err makes
// Send fail without recording anything.
type Mailbox struct {
	mu   sync.Mutex
	sent []Mail
	Err  error
}

func (m *Mailbox) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.sent = append(m.sent, Mail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *Mailbox) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Mail(nil), m.sent...)
}

func (m *Mailbox) Last() (Mail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sent) == 0 {
		return Mail{}, errors.New("no mail sent")
	}

	return m.sent[len(m.sent)-1], nil
}

var (
	verifyLink = regexp.MustCompile(`/verify\?token=([^\s]+)`)
	resetLink  = regexp.MustCompile(`/reset-password/([0-9a-f]+)`)
)

// VerificationToken returns the token from the last verification link sent
func (m *Mailbox) VerificationToken(t *testing.T) string {
	t.Helper()

	return m.match(t, verifyLink)
}

// ResetToken returns the token from the last reset link sent
func (m *Mailbox) ResetToken(t *testing.T) string {
	t.Helper()

	return m.match(t, resetLink)
}

func (m *Mailbox) match(t *testing.T, re *regexp.Regexp) string {
	t.Helper()

	last, err := m.Last()
	require.NoError(t, err)

	sub := re.FindStringSubmatch(last.Body)
	require.Len(t, sub, 2, "no link in %q", last.Body)

	return sub[1]
}
