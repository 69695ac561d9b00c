package cache

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/ecobuy/internal/commerce"
	"github.com/angelmondragon/ecobuy/pkg/enums"
	"github.com/angelmondragon/ecobuy/pkg/security"
)

// Record versions:
//
//	0  no envelope; the raw user object (or user list) written by the first storefront
//	1  envelope around the same raw payloads
//	2  envelope around Session / []LocalAccount

type legacyUser struct {
	commerce.User
	Password string `json:"password,omitempty"`
}

// splitEnvelope returns the payload and its schema version.
func splitEnvelope(raw []byte) (json.RawMessage, int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, 0, errCorrupt
	}
	if trimmed[0] != '{' {
		return trimmed, 0, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if _, ok := fields["version"]; !ok {
		return trimmed, 0, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if env.Version < 1 || env.Version > CurrentVersion {
		return nil, env.Version, fmt.Errorf("%w: unsupported version %d", errCorrupt, env.Version)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, env.Version, fmt.Errorf("%w: empty data", errCorrupt)
	}
	return env.Data, env.Version, nil
}

func decodeSession(raw []byte) (*Session, int, error) {
	data, version, err := splitEnvelope(raw)
	if err != nil {
		return nil, version, err
	}

	var session Session
	switch version {
	case 0, 1:
		var legacy legacyUser
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, version, fmt.Errorf("%w: %v", errCorrupt, err)
		}
		session = Session{User: upgradeUser(legacy.User), Source: enums.SessionSourceLocal}
	default:
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, version, fmt.Errorf("%w: %v", errCorrupt, err)
		}
		session.User = fillCollections(session.User)
	}

	if err := session.check(); err != nil {
		return nil, version, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return &session, version, nil
}

func (c *Cache) decodeAccounts(raw []byte) ([]LocalAccount, int, error) {
	data, version, err := splitEnvelope(raw)
	if err != nil {
		return nil, version, err
	}

	switch version {
	case 0, 1:
		var legacy []legacyUser
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, version, fmt.Errorf("%w: %v", errCorrupt, err)
		}
		accounts := make([]LocalAccount, 0, len(legacy))
		for _, entry := range legacy {
			account := LocalAccount{User: upgradeUser(entry.User)}
			if entry.Password != "" {
				hash, err := security.HashPassword(entry.Password, c.password)
				if err != nil {
					return nil, version, fmt.Errorf("hashing legacy password: %w", err)
				}
				account.PasswordHash = hash
			}
			accounts = append(accounts, account)
		}
		return accounts, version, nil
	default:
		var accounts []LocalAccount
		if err := json.Unmarshal(data, &accounts); err != nil {
			return nil, version, fmt.Errorf("%w: %v", errCorrupt, err)
		}
		for i := range accounts {
			accounts[i].User = fillCollections(accounts[i].User)
		}
		return accounts, version, nil
	}
}

// upgradeUser brings a pre-envelope user up to the current shape. Those
// accounts predate email verification, so they count as verified.
func upgradeUser(u commerce.User) commerce.User {
	if u.FirstName == "" && u.LastName == "" && u.Name != "" {
		u.FirstName, u.LastName = commerce.SplitName(u.Name)
	}
	if u.Name == "" {
		u.Name = commerce.DisplayName(u.FirstName, u.LastName)
	}
	u.Verified = true
	return fillCollections(u)
}

func fillCollections(u commerce.User) commerce.User {
	if u.Cart == nil {
		u.Cart = []commerce.CartItem{}
	}
	if u.Wishlist == nil {
		u.Wishlist = []commerce.WishlistItem{}
	}
	if u.Orders == nil {
		u.Orders = []commerce.Order{}
	}
	return u
}
