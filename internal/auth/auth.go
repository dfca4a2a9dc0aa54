// Package auth maps an opaque client credential to a verified identity.
package auth

import (
	"context"
	"crypto/subtle"
	"sort"

	"github.com/agentstation/eventflow/pkg/errors"
)

// Identity is the verified principal behind a credential.
type Identity struct {
	Name string `json:"name"`
}

// Authenticator validates credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (Identity, error)
}

// StaticKeys authenticates against a fixed table of API keys.
type StaticKeys struct {
	keys []staticKey
}

type staticKey struct {
	key      []byte
	identity Identity
}

// NewStaticKeys builds an authenticator from a key → identity name table.
func NewStaticKeys(keys map[string]string) *StaticKeys {
	s := &StaticKeys{}
	for key, name := range keys {
		if key == "" {
			continue
		}
		s.keys = append(s.keys, staticKey{key: []byte(key), identity: Identity{Name: name}})
	}
	sort.Slice(s.keys, func(i, j int) bool {
		return s.keys[i].identity.Name < s.keys[j].identity.Name
	})
	return s
}

// Len returns the number of configured keys.
func (s *StaticKeys) Len() int {
	return len(s.keys)
}

// Authenticate returns the identity for credential or an AuthenticationError.
// Every configured key is compared so timing does not depend on which matched.
func (s *StaticKeys) Authenticate(ctx context.Context, credential string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	var (
		found    Identity
		matched  int
		provided = []byte(credential)
	)
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare(k.key, provided) == 1 {
			found = k.identity
			matched = 1
		}
	}
	if matched == 0 || credential == "" {
		return Identity{}, errors.NewAuthenticationError("api_key", "", nil)
	}
	return found, nil
}

// AllowAll accepts every credential. It is used when no keys are configured
// and authentication is explicitly disabled.
type AllowAll struct{}

// Authenticate implements Authenticator.
func (AllowAll) Authenticate(context.Context, string) (Identity, error) {
	return Identity{Name: "anonymous"}, nil
}
