// Package auth defines the boundary to the authentication collaborator. The
// core trusts the collaborator implicitly once it returns an actor.
package auth

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// Role is the verified role supplied by the authentication collaborator.
type Role string

const (
	RoleUser      Role = "user"
	RoleBusiness  Role = "business"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Actor is a verified identity.
type Actor struct {
	ID   string
	Role Role
}

// CanModerate reports whether the actor may perform moderator/admin actions.
func (a Actor) CanModerate() bool {
	return a.Role == RoleModerator || a.Role == RoleAdmin
}

// Authenticator resolves a bearer token to a verified actor.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Actor, error)
}

// ErrInvalidToken is returned when a token cannot be resolved.
var ErrInvalidToken = eris.New("auth: invalid token")

// StaticAuthenticator maps tokens to actors from configuration. It stands in
// for a real identity provider in development and tests.
type StaticAuthenticator struct {
	actors map[string]Actor
}

// NewStaticAuthenticator builds an authenticator from token -> "id:role"
// pairs.
func NewStaticAuthenticator(tokens map[string]string) (*StaticAuthenticator, error) {
	actors := make(map[string]Actor, len(tokens))
	for token, spec := range tokens {
		id, role, ok := strings.Cut(spec, ":")
		if !ok || id == "" {
			return nil, eris.Errorf("auth: malformed actor spec %q", spec)
		}
		actors[token] = Actor{ID: id, Role: Role(role)}
	}
	return &StaticAuthenticator{actors: actors}, nil
}

// Authenticate implements Authenticator.
func (s *StaticAuthenticator) Authenticate(_ context.Context, token string) (Actor, error) {
	actor, ok := s.actors[token]
	if !ok {
		return Actor{}, ErrInvalidToken
	}
	return actor, nil
}
