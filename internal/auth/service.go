package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-hr/meridian-hr/internal/rbac"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

const defaultTokenTTL = 720 * time.Hour

// Service authenticates users and resolves identities and roles for the
// RBAC guard. It implements rbac.IdentityResolver and rbac.RoleResolver.
type Service struct {
	repo     Repository
	tokenTTL time.Duration
	group    singleflight.Group
}

// NewService constructs a Service.
func NewService(repo Repository, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &Service{repo: repo, tokenTTL: tokenTTL}
}

// Login verifies credentials and issues an opaque API token. Only the
// token's SHA-256 hash is persisted.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", time.Time{}, shared.ErrInvalidCredentials
		}
		return "", time.Time{}, err
	}
	if !user.IsActive {
		return "", time.Time{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, shared.ErrInvalidCredentials
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	expiresAt := time.Now().UTC().Add(s.tokenTTL)
	if err := s.repo.CreateToken(ctx, hashToken(token), user.ID, expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ResolveIdentity maps a bearer token to an identity. Requests without a
// usable token resolve to an anonymous identity rather than an error, so the
// guard can degrade them to the fallback role.
func (s *Service) ResolveIdentity(ctx context.Context, r *http.Request) (shared.Identity, error) {
	token := bearerToken(r)
	if token == "" {
		return shared.Identity{Anonymous: true}, nil
	}
	user, err := s.repo.FindByTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Identity{Anonymous: true}, nil
		}
		return shared.Identity{}, err
	}
	if !user.IsActive {
		return shared.Identity{Anonymous: true}, nil
	}
	return shared.Identity{UserID: user.ID, Email: user.Email}, nil
}

// RoleFor resolves a user's role against the closed role set. Concurrent
// lookups for the same user are collapsed.
func (s *Service) RoleFor(ctx context.Context, userID int64) (rbac.Role, error) {
	v, err, _ := s.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		return s.repo.RoleForUser(ctx, userID)
	})
	if err != nil {
		return "", err
	}
	role, ok := rbac.ParseRole(v.(string))
	if !ok {
		return "", shared.ErrNotFound
	}
	return role, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
