package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ptgott/e2ekit/user"
)

// UserLog is an append-only log of recorded users.
type UserLog interface {
	// Append adds u at the end of the log.
	Append(u user.RecordedTestUser) error
	// Users returns every recorded user, oldest first.
	Users() ([]user.RecordedTestUser, error)
	// Close releases the underlying store.
	Close() error
}

// Kind selects a UserLog implementation.
type Kind string

const (
	KindJSON   Kind = "json"
	KindBadger Kind = "badger"
)

// JSONFilename is the name of the JSON log inside the log directory.
const JSONFilename = "users.json"

const badgerDirname = "users.badger"

// UnmarshalYAML rejects unknown store kinds.
func (k *Kind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	kind := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case KindJSON, KindBadger:
		*k = kind
		return nil
	default:
		return fmt.Errorf("unknown user store %q, expected %q or %q", s, KindJSON, KindBadger)
	}
}

// Open returns the UserLog of the given kind stored in dir. An empty kind
// means KindJSON.
func Open(kind Kind, dir string) (UserLog, error) {
	switch kind {
	case "", KindJSON:
		return NewJSONFile(filepath.Join(dir, JSONFilename)), nil
	case KindBadger:
		return NewBadgerDB(filepath.Join(dir, badgerDirname))
	default:
		return nil, fmt.Errorf("unknown user store %q", kind)
	}
}

// LastSentinel makes Last pick the most recent user of the environment
// whatever its email.
const LastSentinel = "last"

// Last returns the most recent user recorded for env whose email is email, or
// simply the most recent one for env when email is LastSentinel (in any
// case).
func Last(users []user.RecordedTestUser, env, email string) (user.RecordedTestUser, bool) {
	anyEmail := strings.EqualFold(email, LastSentinel)
	for i := len(users) - 1; i >= 0; i-- {
		u := users[i]
		if u.Environment == env && (anyEmail || u.Email == email) {
			return u, true
		}
	}
	return user.RecordedTestUser{}, false
}
