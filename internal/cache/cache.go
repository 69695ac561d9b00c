package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/ecobuy/internal/commerce"
	"github.com/angelmondragon/ecobuy/pkg/config"
	"github.com/angelmondragon/ecobuy/pkg/enums"
	"github.com/angelmondragon/ecobuy/pkg/logger"
)

const (
	// KeySession holds the signed-in shopper.
	KeySession = "user"
	// KeyAccounts holds the offline accounts known on this device.
	KeyAccounts = "users"

	// CurrentVersion is the record schema written by SaveSession and SaveAccounts.
	CurrentVersion = 2
)

// ErrNoSession is returned by LoadSession when nothing usable is cached.
var ErrNoSession = errors.New("cache: no session")

var errCorrupt = errors.New("cache: corrupt record")

// Session is the persisted form of the signed-in shopper.
type Session struct {
	User   commerce.User       `json:"user"`
	Token  string              `json:"token,omitempty"`
	Source enums.SessionSource `json:"source"`
}

// Pending reports whether the session is a registration still waiting for
// its emailed code.
func (s Session) Pending() bool {
	return s.Source == enums.SessionSourcePending
}

func (s Session) check() error {
	if !s.Source.IsValid() {
		return fmt.Errorf("unknown source %q", s.Source)
	}
	if s.Pending() {
		if strings.TrimSpace(s.User.Email) == "" {
			return fmt.Errorf("pending session without email")
		}
		return nil
	}
	if strings.TrimSpace(s.User.ID) == "" {
		return fmt.Errorf("session without user id")
	}
	if s.Source == enums.SessionSourceRemote && s.Token == "" {
		return fmt.Errorf("remote session without token")
	}
	return nil
}

// LocalAccount is an offline account: the user record plus its password hash.
type LocalAccount struct {
	User         commerce.User `json:"user"`
	PasswordHash string        `json:"passwordHash"`
}

type envelope struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"savedAt"`
	Data    json.RawMessage `json:"data"`
}

// Cache reads and writes the versioned session and account records.
type Cache struct {
	backend  Backend
	logg     *logger.Logger
	now      func() time.Time
	password config.PasswordConfig
}

type Option func(*Cache)

// WithClock overrides the savedAt clock.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithPasswordConfig sets the argon2 parameters used when legacy plaintext
// account passwords are upgraded.
func WithPasswordConfig(cfg config.PasswordConfig) Option {
	return func(c *Cache) { c.password = cfg }
}

func New(backend Backend, logg *logger.Logger, opts ...Option) (*Cache, error) {
	if backend == nil {
		return nil, fmt.Errorf("cache backend is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	c := &Cache{
		backend: backend,
		logg:    logg,
		now:     time.Now,
		password: config.PasswordConfig{
			ArgonMemoryKB:    64 * 1024,
			ArgonTime:        3,
			ArgonParallelism: 2,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LoadSession returns the cached session. Corrupt or unknown records are
// removed and reported as ErrNoSession.
func (c *Cache) LoadSession(ctx context.Context) (*Session, error) {
	raw, err := c.backend.Get(ctx, KeySession)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	session, version, err := decodeSession(raw)
	if err != nil {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"key": KeySession, "reason": err.Error()}), "cache.session.corrupt")
		if delErr := c.backend.Delete(ctx, KeySession); delErr != nil {
			c.logg.Error(ctx, "cache.session.delete_failed", delErr)
		}
		return nil, ErrNoSession
	}

	if version < CurrentVersion {
		if err := c.SaveSession(ctx, *session); err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "from_version", version), "cache.session.upgrade_failed")
		}
	}
	return session, nil
}

// SaveSession writes the session in the current schema.
func (c *Cache) SaveSession(ctx context.Context, session Session) error {
	if err := session.check(); err != nil {
		return err
	}
	session.User = session.User.Clone()
	return c.write(ctx, KeySession, session)
}

func (c *Cache) ClearSession(ctx context.Context) error {
	return c.backend.Delete(ctx, KeySession)
}

// LoadAccounts returns the offline accounts. Missing or unreadable records
// yield an empty list.
func (c *Cache) LoadAccounts(ctx context.Context) ([]LocalAccount, error) {
	raw, err := c.backend.Get(ctx, KeyAccounts)
	if errors.Is(err, ErrNotFound) {
		return []LocalAccount{}, nil
	}
	if err != nil {
		return nil, err
	}

	accounts, version, err := c.decodeAccounts(raw)
	if err != nil {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"key": KeyAccounts, "reason": err.Error()}), "cache.accounts.corrupt")
		return []LocalAccount{}, nil
	}
	if version < CurrentVersion {
		if err := c.SaveAccounts(ctx, accounts); err != nil {
			c.logg.Warn(c.logg.WithField(ctx, "from_version", version), "cache.accounts.upgrade_failed")
		}
	}
	return accounts, nil
}

func (c *Cache) SaveAccounts(ctx context.Context, accounts []LocalAccount) error {
	out := make([]LocalAccount, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, LocalAccount{User: account.User.Clone(), PasswordHash: account.PasswordHash})
	}
	return c.write(ctx, KeyAccounts, out)
}

// FindAccount looks an offline account up by case-insensitive email.
func (c *Cache) FindAccount(ctx context.Context, email string) (*LocalAccount, error) {
	accounts, err := c.LoadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	want := commerce.NormalizeEmail(email)
	for i := range accounts {
		if commerce.NormalizeEmail(accounts[i].User.Email) == want {
			return &accounts[i], nil
		}
	}
	return nil, nil
}

// UpsertAccount replaces the stored user for an existing offline account,
// keeping its password hash. Unknown ids are ignored.
func (c *Cache) UpsertAccount(ctx context.Context, user commerce.User) error {
	accounts, err := c.LoadAccounts(ctx)
	if err != nil {
		return err
	}
	for i := range accounts {
		if accounts[i].User.ID == user.ID {
			accounts[i].User = user
			return c.SaveAccounts(ctx, accounts)
		}
	}
	return nil
}

func (c *Cache) write(ctx context.Context, key string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", key, err)
	}
	raw, err := json.Marshal(envelope{
		Version: CurrentVersion,
		SavedAt: c.now().UTC(),
		Data:    payload,
	})
	if err != nil {
		return fmt.Errorf("encoding %s envelope: %w", key, err)
	}
	return c.backend.Set(ctx, key, raw)
}
