package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/angelmondragon/ecobuy/internal/commerce"
	"github.com/angelmondragon/ecobuy/pkg/config"
	"github.com/angelmondragon/ecobuy/pkg/enums"
	"github.com/angelmondragon/ecobuy/pkg/logger"
	"github.com/angelmondragon/ecobuy/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestCache(t *testing.T, backend Backend) (*Cache, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "cache-test", Level: logger.ParseLevel("debug"), Output: buf})
	c, err := New(backend, logg,
		WithClock(func() time.Time { return fixedNow }),
		WithPasswordConfig(config.PasswordConfig{ArgonMemoryKB: 8 * 1024, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}),
	)
	require.NoError(t, err)
	return c, buf
}

func sampleUser() commerce.User {
	return commerce.User{
		ID:        "u1",
		Email:     "a@b.com",
		Name:      "Ann Lee",
		FirstName: "Ann",
		LastName:  "Lee",
		Cart:      []commerce.CartItem{{ID: "p1", Name: "Bag", Price: 10, Quantity: 2}},
		Wishlist:  []commerce.WishlistItem{{ID: "p2", Name: "Cup", Price: 4, InStock: true}},
		Orders: []commerce.Order{{
			ID:     "ORD-AB12C",
			Date:   fixedNow,
			Status: enums.OrderStatusProcessing,
			Total:  20,
			Items:  []commerce.OrderItem{{ID: "p1", Name: "Bag", Price: 10, Quantity: 2}},
		}},
		Verified: true,
	}
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, NewMemoryBackend())

	in := Session{User: sampleUser(), Token: "jwt", Source: enums.SessionSourceRemote}
	require.NoError(t, c.SaveSession(ctx, in))

	out, err := c.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, *out)
}

func TestSaveSessionWritesEnvelope(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	c, _ := newTestCache(t, backend)
	require.NoError(t, c.SaveSession(ctx, Session{User: sampleUser(), Source: enums.SessionSourceLocal}))

	raw, err := backend.Get(ctx, KeySession)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, CurrentVersion, env.Version)
	assert.True(t, env.SavedAt.Equal(fixedNow))
}

func TestSaveSessionValidates(t *testing.T) {
	c, _ := newTestCache(t, NewMemoryBackend())
	assert.Error(t, c.SaveSession(context.Background(), Session{Source: enums.SessionSourceLocal}))
	assert.Error(t, c.SaveSession(context.Background(), Session{User: sampleUser(), Source: "elsewhere"}))
}

func TestPendingSessionKeepsEmailOnly(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, NewMemoryBackend())

	require.NoError(t, c.SaveSession(ctx, Session{User: commerce.User{Email: "ann@example.com"}, Source: enums.SessionSourcePending}))
	out, err := c.LoadSession(ctx)
	require.NoError(t, err)
	assert.True(t, out.Pending())
	assert.Equal(t, "ann@example.com", out.User.Email)
	assert.Empty(t, out.User.ID)

	assert.Error(t, c.SaveSession(ctx, Session{Source: enums.SessionSourcePending}))
}

func TestLoadSessionAbsent(t *testing.T) {
	c, _ := newTestCache(t, NewMemoryBackend())
	_, err := c.LoadSession(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLoadSessionCorruptIsClearedSilently(t *testing.T) {
	cases := map[string]string{
		"garbage":          "{not json",
		"future version":   `{"version":9,"savedAt":"2026-01-01T00:00:00Z","data":{"user":{"id":"u1"},"source":"local"}}`,
		"missing id":       `{"version":2,"savedAt":"2026-01-01T00:00:00Z","data":{"user":{"email":"a@b.com"},"source":"local"}}`,
		"remote no token":  `{"version":2,"savedAt":"2026-01-01T00:00:00Z","data":{"user":{"id":"u1"},"source":"remote"}}`,
		"pending no email": `{"version":2,"savedAt":"2026-01-01T00:00:00Z","data":{"user":{},"source":"pending"}}`,
		"array":            `[1,2,3]`,
		"null":             `null`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			backend := NewMemoryBackend()
			require.NoError(t, backend.Set(ctx, KeySession, []byte(payload)))
			c, logs := newTestCache(t, backend)

			_, err := c.LoadSession(ctx)
			assert.ErrorIs(t, err, ErrNoSession)

			_, err = backend.Get(ctx, KeySession)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Contains(t, logs.String(), "cache.session.corrupt")
		})
	}
}

func TestLoadSessionMigratesLegacyUser(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	legacy := `{"id":"1700000000000","email":"a@b.com","name":"Ann Lee","cart":[{"id":"p1","name":"Bag","price":10,"image":"","quantity":2}],"wishlist":null,"orders":[{"id":"ORD-X1Y2Z","date":"2025-01-02T03:04:05.000Z","status":"processing","total":20,"items":[{"id":"p1","name":"Bag","quantity":2,"price":10,"image":""}]}]}`
	require.NoError(t, backend.Set(ctx, KeySession, []byte(legacy)))
	c, _ := newTestCache(t, backend)

	session, err := c.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionSourceLocal, session.Source)
	assert.Equal(t, "Ann", session.User.FirstName)
	assert.Equal(t, "Lee", session.User.LastName)
	assert.True(t, session.User.Verified)
	assert.NotNil(t, session.User.Wishlist)
	require.Len(t, session.User.Orders, 1)
	assert.Equal(t, 20.0, session.User.Orders[0].Total)

	raw, err := backend.Get(ctx, KeySession)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version":2`)
}

func TestLoadSessionMigratesVersionOne(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	v1 := `{"version":1,"savedAt":"2025-06-01T00:00:00Z","data":{"id":"u1","email":"a@b.com","firstName":"Ann","lastName":"Lee","cart":[],"wishlist":[],"orders":[]}}`
	require.NoError(t, backend.Set(ctx, KeySession, []byte(v1)))
	c, _ := newTestCache(t, backend)

	session, err := c.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", session.User.ID)
	assert.Equal(t, "Ann Lee", session.User.Name)
	assert.Equal(t, enums.SessionSourceLocal, session.Source)
}

func TestClearSession(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, NewMemoryBackend())
	require.NoError(t, c.SaveSession(ctx, Session{User: sampleUser(), Source: enums.SessionSourceLocal}))
	require.NoError(t, c.ClearSession(ctx))
	require.NoError(t, c.ClearSession(ctx))

	_, err := c.LoadSession(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestAccountsRoundTripAndUpsert(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, NewMemoryBackend())

	accounts, err := c.LoadAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	user := sampleUser()
	require.NoError(t, c.SaveAccounts(ctx, []LocalAccount{{User: user, PasswordHash: "hash"}}))

	user.Cart = nil
	user.Phone = "555"
	require.NoError(t, c.UpsertAccount(ctx, user))
	require.NoError(t, c.UpsertAccount(ctx, commerce.User{ID: "unknown"}))

	accounts, err = c.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "hash", accounts[0].PasswordHash)
	assert.Equal(t, "555", accounts[0].User.Phone)
	assert.Empty(t, accounts[0].User.Cart)

	found, err := c.FindAccount(ctx, " A@B.COM ")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "u1", found.User.ID)

	missing, err := c.FindAccount(ctx, "x@y.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestLoadAccountsMigratesLegacyPasswords(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	legacy := `[{"id":"1","email":"a@b.com","name":"Ann Lee","password":"secret1","cart":[],"wishlist":[],"orders":[]}]`
	require.NoError(t, backend.Set(ctx, KeyAccounts, []byte(legacy)))
	c, _ := newTestCache(t, backend)

	accounts, err := c.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	ok, err := security.VerifyPassword("secret1", accounts[0].PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	raw, err := backend.Get(ctx, KeyAccounts)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret1")
}

func TestLoadAccountsCorruptIsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, KeyAccounts, []byte("{{")))
	c, logs := newTestCache(t, backend)

	accounts, err := c.LoadAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Contains(t, logs.String(), "cache.accounts.corrupt")
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}
