package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/roomchat/modules/storage"
)

var (
	// ErrInvalidToken is returned when the session token is missing,
	// malformed, expired or signed with the wrong key.
	ErrInvalidToken = errors.New("invalid session token")
)

// Identity is the authenticated principal bound to a connection for its
// whole lifetime.
type Identity struct {
	UserID string
	Name   string
}

// SessionClaims is the payload of a session token issued by the auth
// collaborator: a `uid` claim plus the registered set.
type SessionClaims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// Resolver verifies session tokens and resolves display names.
type Resolver struct {
	secret []byte
	users  userLookup
}

// userLookup is the slice of storage the resolver needs.
type userLookup interface {
	GetUserName(ctx context.Context, id string) (string, error)
}

// repoLookup adapts the storage repository to the resolver.
type repoLookup struct {
	repo *storage.Repository
}

func (l repoLookup) GetUserName(ctx context.Context, id string) (string, error) {
	user, err := l.repo.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Name, nil
}

// NewResolver creates a resolver backed by the storage repository.
func NewResolver(secret string, repo *storage.Repository) *Resolver {
	return &Resolver{secret: []byte(secret), users: repoLookup{repo: repo}}
}

// Resolve verifies a session token and returns the bound identity. Any
// verification failure maps to ErrInvalidToken; callers close the
// connection before registering state anywhere.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return r.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || claims.UID == "" {
		return nil, ErrInvalidToken
	}

	name, err := r.users.GetUserName(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	return &Identity{UserID: claims.UID, Name: name}, nil
}

// IssueToken signs a session token for a user. The login collaborator
// owns credential verification; this is the token contract it and the
// tests share.
func (r *Resolver) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
