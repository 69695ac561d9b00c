package enums

import "fmt"

// SessionSource says where the current shopper session was established.
type SessionSource string

const (
	// SessionSourceLocal sessions live only in the device cache (offline/demo accounts).
	SessionSourceLocal SessionSource = "local"
	// SessionSourceRemote sessions are backed by the account service and carry a token.
	SessionSourceRemote SessionSource = "remote"
	// SessionSourcePending marks a registration waiting for its emailed code. Only the email is kept.
	SessionSourcePending SessionSource = "pending"
)

var validSessionSources = []SessionSource{
	SessionSourceLocal,
	SessionSourceRemote,
	SessionSourcePending,
}

func (s SessionSource) String() string {
	return string(s)
}

func (s SessionSource) IsValid() bool {
	for _, candidate := range validSessionSources {
		if candidate == s {
			return true
		}
	}
	return false
}

func ParseSessionSource(value string) (SessionSource, error) {
	for _, candidate := range validSessionSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session source %q", value)
}
