package account_test

import (
	"bitwise74/account-api/internal/account"
	"bitwise74/account-api/internal/apperr"
	"bitwise74/account-api/internal/limiter"
	"bitwise74/account-api/internal/model"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/internal/testutil"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	m     *account.Manager
	store *store.GormStore
	mail  *testutil.Mailbox
	clock *testutil.Clock
}

func newEnv(t *testing.T, lim limiter.Limiter) *env {
	t.Helper()

	e := &env{
		store: testutil.NewStore(t),
		mail:  &testutil.Mailbox{},
		clock: testutil.NewClock(),
	}

	e.m = account.New(account.Opts{
		Store:     e.store,
		Hasher:    testutil.NewHasher(),
		Tokens:    testutil.NewTokens(t, e.clock),
		Notifier:  e.mail,
		Limiter:   lim,
		PublicURL: "https://api.example.com/",
	})

	return e
}

func (e *env) register(t *testing.T, name, username, password, email string) *model.User {
	t.Helper()

	u, err := e.m.Register(context.Background(), account.RegisterInput{
		Name:     name,
		Username: username,
		Password: password,
		Email:    email,
	})
	require.NoError(t, err)

	return u
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()

	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), err.Error())
}

func TestRegister(t *testing.T) {
	e := newEnv(t, nil)

	u := e.register(t, "Alice", "alice", "secret1", "a@x.com")

	assert.False(t, u.Verified)
	assert.NotEmpty(t, u.ID)

	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "password")
	assert.NotContains(t, string(b), "$argon2id")
	assert.NotContains(t, string(b), "verification")

	sent := e.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@x.com", sent[0].To)
	assert.Contains(t, sent[0].Body, "https://api.example.com/verify?token=")

	stored, err := e.store.FindByField(context.Background(), store.FieldUsername, "alice")
	require.NoError(t, err)
	require.NotNil(t, stored.VerificationToken)
	assert.Equal(t, e.mail.VerificationToken(t), *stored.VerificationToken)
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	for _, in := range []account.RegisterInput{
		{Username: "alice", Password: "secret1", Email: "a@x.com"},
		{Name: "Alice", Password: "secret1", Email: "a@x.com"},
		{Name: "Alice", Username: "alice", Email: "a@x.com"},
		{Name: "Alice", Username: "alice", Password: "secret1"},
		{Name: "Alice", Username: "alice", Password: "short", Email: "a@x.com"},
		{Name: "Alice", Username: "alice", Password: "secret1", Email: "not-an-email"},
	} {
		_, err := e.m.Register(ctx, in)
		assertKind(t, err, apperr.KindBadRequest)
	}

	assert.Empty(t, e.mail.Sent())
}

func TestRegisterConflicts(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	e.register(t, "Alice", "alice", "secret1", "a@x.com")

	_, err := e.m.Register(ctx, account.RegisterInput{Name: "A", Username: "alice", Password: "secret1", Email: "other@x.com"})
	assertKind(t, err, apperr.KindConflict)

	_, err = e.m.Register(ctx, account.RegisterInput{Name: "A", Username: "other", Password: "secret1", Email: "a@x.com"})
	assertKind(t, err, apperr.KindConflict)

	assert.Len(t, e.mail.Sent(), 1)
}

func TestRegisterKeepsUserWhenMailFails(t *testing.T) {
	e := newEnv(t, nil)
	e.mail.Err = errors.New("smtp down")

	_, err := e.m.Register(context.Background(), account.RegisterInput{
		Name: "Alice", Username: "alice", Password: "secret1", Email: "a@x.com",
	})
	assertKind(t, err, apperr.KindInternal)

	_, err = e.store.FindByField(context.Background(), store.FieldUsername, "alice")
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	e.register(t, "Alice", "alice", "secret1", "a@x.com")

	u, err := e.m.Login(ctx, "client", "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)

	_, err = e.m.Login(ctx, "client", "alice", "wrong")
	assertKind(t, err, apperr.KindUnauthorized)

	_, err = e.m.Login(ctx, "client", "bob", "secret1")
	assertKind(t, err, apperr.KindNotFound)

	_, err = e.m.Login(ctx, "client", "", "secret1")
	assertKind(t, err, apperr.KindBadRequest)
}

func TestLoginRateLimited(t *testing.T) {
	lim := limiter.NewMemoryLimiter(limiter.Config{MaxAttempts: 5, Window: 15 * time.Minute})
	e := newEnv(t, lim)
	ctx := context.Background()

	e.register(t, "Alice", "alice", "secret1", "a@x.com")

	for range 5 {
		_, err := e.m.Login(ctx, "1.2.3.4", "alice", "wrong")
		assertKind(t, err, apperr.KindUnauthorized)
	}

	// Correct credentials don't get past the limit either
	_, err := e.m.Login(ctx, "1.2.3.4", "alice", "secret1")
	assertKind(t, err, apperr.KindTooManyRequests)

	_, err = e.m.Login(ctx, "5.6.7.8", "alice", "secret1")
	assert.NoError(t, err)
}

func TestVerifyEmail(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	e.register(t, "Alice", "alice", "secret1", "a@x.com")
	aliceToken := e.mail.VerificationToken(t)

	e.register(t, "Bob", "bob", "secret1", "b@x.com")

	u, err := e.m.VerifyEmail(ctx, aliceToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)
	assert.True(t, u.Verified)
	assert.Nil(t, u.VerificationToken)
	assert.Nil(t, u.VerificationTokenExpiry)

	bob, err := e.store.FindByField(ctx, store.FieldUsername, "bob")
	require.NoError(t, err)
	assert.False(t, bob.Verified)

	// Single use
	_, err = e.m.VerifyEmail(ctx, aliceToken)
	assertKind(t, err, apperr.KindTokenInvalid)
}

func TestVerifyEmailInvalid(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	e.register(t, "Alice", "alice", "secret1", "a@x.com")
	token := e.mail.VerificationToken(t)

	for _, bad := range []string{"", "garbage", token + "x"} {
		_, err := e.m.VerifyEmail(ctx, bad)
		assertKind(t, err, apperr.KindTokenInvalid)
	}
}

func TestVerifyEmailExpired(t *testing.T) {
	e := newEnv(t, nil)

	e.register(t, "Alice", "alice", "secret1", "a@x.com")
	token := e.mail.VerificationToken(t)

	e.clock.Advance(2 * time.Hour)

	_, err := e.m.VerifyEmail(context.Background(), token)
	assertKind(t, err, apperr.KindTokenExpired)
}

func TestVerifyEmailStoredExpiry(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	u := e.register(t, "Alice", "alice", "secret1", "a@x.com")
	token := e.mail.VerificationToken(t)

	// The signature is still good, only the stored deadline has passed
	_, err := e.store.UpdateFields(ctx, u.ID, store.Fields{
		store.FieldVerificationTokenExpiry: e.clock.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	_, err = e.m.VerifyEmail(ctx, token)
	assertKind(t, err, apperr.KindTokenExpired)

	got, err := e.store.FindByField(ctx, store.FieldID, u.ID)
	require.NoError(t, err)
	assert.False(t, got.Verified)
}

func TestVerifyEmailRevokedByNewToken(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	u := e.register(t, "Alice", "alice", "secret1", "a@x.com")
	oldToken := e.mail.VerificationToken(t)

	_, err := e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: u.ID, Email: "new@x.com"})
	require.NoError(t, err)
	newToken := e.mail.VerificationToken(t)

	// Still correctly signed but no longer stored
	_, err = e.m.VerifyEmail(ctx, oldToken)
	assertKind(t, err, apperr.KindTokenInvalid)

	verified, err := e.m.VerifyEmail(ctx, newToken)
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", verified.Email)
	assert.True(t, verified.Verified)
}

func TestGoogleUpsert(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	u, res, err := e.m.GoogleUpsert(ctx, "Alice", "a@x.com", "https://img/1.png")
	require.NoError(t, err)
	assert.Equal(t, account.UpsertCreated, res)
	assert.True(t, u.Verified)
	assert.False(t, u.HasPassword())

	u2, res, err := e.m.GoogleUpsert(ctx, "Alice B", "a@x.com", "https://img/2.png")
	require.NoError(t, err)
	assert.Equal(t, account.UpsertUpdated, res)
	assert.Equal(t, u.ID, u2.ID)
	assert.Equal(t, "Alice B", u2.Name)
	assert.Equal(t, "https://img/2.png", u2.Image)

	users, err := e.m.List(ctx)
	require.NoError(t, err)

	count := 0
	for _, u := range users {
		if u.Email == "a@x.com" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	assert.Empty(t, e.mail.Sent())

	_, _, err = e.m.GoogleUpsert(ctx, "Alice", "", "https://img/1.png")
	assertKind(t, err, apperr.KindBadRequest)
}

func TestGoogleAccountCantLoginWithPassword(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	u, _, err := e.m.GoogleUpsert(ctx, "Alice", "a@x.com", "https://img/1.png")
	require.NoError(t, err)

	_, err = e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: u.ID, Username: "alice"})
	require.NoError(t, err)

	_, err = e.m.Login(ctx, "client", "alice", "anything")
	assertKind(t, err, apperr.KindUnauthorized)

	// No old password to check
	_, err = e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: u.ID, NewPassword: "secret1"})
	require.NoError(t, err)

	_, err = e.m.Login(ctx, "client", "alice", "secret1")
	assert.NoError(t, err)
}

func TestUpdateProfileUsernameConflict(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	alice := e.register(t, "Alice", "alice", "secret1", "a@x.com")
	e.register(t, "Bob", "bob", "secret1", "b@x.com")

	for _, in := range []account.ProfileUpdate{
		{ID: alice.ID, Username: "bob"},
		{ID: alice.ID, Username: "bob", Name: "New"},
		{ID: alice.ID, Username: "bob", Email: "new@x.com"},
		{ID: alice.ID, Username: "bob", NewPassword: "secret2", OldPassword: "secret1"},
		{ID: alice.ID, Username: "bob", Name: "New", Email: "c@x.com", NewPassword: "secret2", OldPassword: "wrong"},
	} {
		_, err := e.m.UpdateProfile(ctx, in)
		assertKind(t, err, apperr.KindConflict)
	}

	u, err := e.store.FindByField(ctx, store.FieldID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UsernameOrEmpty())
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "a@x.com", u.Email)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	alice := e.register(t, "Alice", "alice", "secret1", "a@x.com")
	e.register(t, "Bob", "bob", "secret1", "b@x.com")

	_, err := e.m.UpdateProfile(ctx, account.ProfileUpdate{Name: "x"})
	assertKind(t, err, apperr.KindBadRequest)

	_, err = e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: "missing", Name: "x"})
	assertKind(t, err, apperr.KindBadRequest)

	_, err = e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: alice.ID})
	assertKind(t, err, apperr.KindBadRequest)

	_, err = e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: alice.ID, Email: "b@x.com"})
	assertKind(t, err, apperr.KindConflict)

	// Keeping your own username is not a conflict
	u, err := e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: alice.ID, Username: "alice", Name: "Alice A"})
	require.NoError(t, err)
	assert.Equal(t, "Alice A", u.Name)
	assert.Equal(t, "a@x.com", u.Email)
}

func TestUpdateProfileUnchangedValues(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	alice := e.register(t, "Alice", "alice", "secret1", "a@x.com")
	sent := len(e.mail.Sent())

	u, err := e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: alice.ID, Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)
	assert.Equal(t, "Alice", u.Name)

	u, err = e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: alice.ID, Username: "alice", Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)

	// Same email keeps the pending verification as it is
	assert.Len(t, e.mail.Sent(), sent)
}

func TestUpdateProfileEmailResetsVerification(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	alice := e.register(t, "Alice", "alice", "secret1", "a@x.com")
	_, err := e.m.VerifyEmail(ctx, e.mail.VerificationToken(t))
	require.NoError(t, err)

	u, err := e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: alice.ID, Email: "new@x.com"})
	require.NoError(t, err)
	assert.False(t, u.Verified)
	assert.Equal(t, "new@x.com", u.Email)

	last, err := e.mail.Last()
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", last.To)
	assert.Len(t, e.mail.Sent(), 2)
}

func TestUpdateProfilePassword(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	alice := e.register(t, "Alice", "alice", "secret1", "a@x.com")

	_, err := e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: alice.ID, NewPassword: "secret2"})
	assertKind(t, err, apperr.KindBadRequest)

	_, err = e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: alice.ID, NewPassword: "secret2", OldPassword: "wrong"})
	assertKind(t, err, apperr.KindBadRequest)

	_, err = e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: alice.ID, NewPassword: "short", OldPassword: "secret1"})
	assertKind(t, err, apperr.KindBadRequest)

	_, err = e.m.UpdateProfile(ctx, account.ProfileUpdate{ID: alice.ID, NewPassword: "secret2", OldPassword: "secret1"})
	require.NoError(t, err)

	_, err = e.m.Login(ctx, "client", "alice", "secret1")
	assertKind(t, err, apperr.KindUnauthorized)

	_, err = e.m.Login(ctx, "client", "alice", "secret2")
	assert.NoError(t, err)
}

func TestLookupAndList(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	alice := e.register(t, "Alice", "alice", "secret1", "a@x.com")
	e.register(t, "Bob", "bob", "secret1", "b@x.com")

	u, err := e.m.Lookup(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	u, err = e.m.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	_, err = e.m.Lookup(ctx, "nobody")
	assertKind(t, err, apperr.KindNotFound)

	_, err = e.m.Lookup(ctx, "")
	assertKind(t, err, apperr.KindBadRequest)

	users, err := e.m.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	b, err := json.Marshal(users)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "$argon2id")
	assert.NotContains(t, string(b), "Token")
}
