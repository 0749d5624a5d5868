package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-hr/meridian-hr/internal/rbac"
	"github.com/meridian-hr/meridian-hr/internal/shared"
	_ "github.com/meridian-hr/meridian-hr/testing"
)

type mockRepo struct {
	usersByEmail map[string]*User
	usersByToken map[string]*User
	roles        map[int64]string
	tokens       map[string]int64
	err          error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		usersByEmail: make(map[string]*User),
		usersByToken: make(map[string]*User),
		roles:        make(map[int64]string),
		tokens:       make(map[string]int64),
	}
}

func (m *mockRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.usersByEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) FindByTokenHash(ctx context.Context, hash string) (*User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.usersByToken[hash]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) CreateToken(ctx context.Context, hash string, userID int64, expiresAt time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.tokens[hash] = userID
	return nil
}

func (m *mockRepo) RoleForUser(ctx context.Context, userID int64) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	role, ok := m.roles[userID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return role, nil
}

func addUser(repo *mockRepo, id int64, email, password, role string, active bool) *User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	u := &User{ID: id, Email: email, PasswordHash: string(hash), Role: role, IsActive: active}
	repo.usersByEmail[email] = u
	repo.roles[id] = role
	return u
}

func TestLoginIssuesToken(t *testing.T) {
	repo := newMockRepo()
	addUser(repo, 1, "manager@test.local", "manager12345", "manager", true)
	svc := NewService(repo, time.Hour)

	token, expiresAt, err := svc.Login(context.Background(), "  Manager@Test.Local ", "manager12345")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	// Only the hash reaches the repository.
	sum := sha256.Sum256([]byte(token))
	_, stored := repo.tokens[hex.EncodeToString(sum[:])]
	assert.True(t, stored)
	_, plaintext := repo.tokens[token]
	assert.False(t, plaintext)
}

func TestLoginRejections(t *testing.T) {
	repo := newMockRepo()
	addUser(repo, 1, "manager@test.local", "manager12345", "manager", true)
	addUser(repo, 2, "gone@test.local", "gone12345", "user", false)
	svc := NewService(repo, time.Hour)

	_, _, err := svc.Login(context.Background(), "manager@test.local", "wrong-password")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody@test.local", "manager12345")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials, "unknown account is indistinguishable from a bad password")

	_, _, err = svc.Login(context.Background(), "gone@test.local", "gone12345")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginRepoFailureIsNotCredentialError(t *testing.T) {
	repo := newMockRepo()
	repo.err = errors.New("database down")
	svc := NewService(repo, time.Hour)

	_, _, err := svc.Login(context.Background(), "manager@test.local", "manager12345")
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestResolveIdentity(t *testing.T) {
	repo := newMockRepo()
	u := addUser(repo, 7, "manager@test.local", "manager12345", "manager", true)
	repo.usersByToken[hashToken("tok-7")] = u
	svc := NewService(repo, time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/contracts", nil)
	identity, err := svc.ResolveIdentity(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, identity.Anonymous, "no header resolves anonymously")

	r.Header.Set("Authorization", "Bearer tok-7")
	identity, err = svc.ResolveIdentity(context.Background(), r)
	require.NoError(t, err)
	assert.False(t, identity.Anonymous)
	assert.Equal(t, int64(7), identity.UserID)
	assert.Equal(t, "manager@test.local", identity.Email)

	r.Header.Set("Authorization", "Bearer expired-or-bogus")
	identity, err = svc.ResolveIdentity(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, identity.Anonymous, "unknown token degrades instead of erroring")

	r.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	identity, err = svc.ResolveIdentity(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, identity.Anonymous)
}

func TestResolveIdentityInactiveUser(t *testing.T) {
	repo := newMockRepo()
	u := addUser(repo, 8, "gone@test.local", "gone12345", "user", false)
	repo.usersByToken[hashToken("tok-8")] = u
	svc := NewService(repo, time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/contracts", nil)
	r.Header.Set("Authorization", "Bearer tok-8")
	identity, err := svc.ResolveIdentity(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, identity.Anonymous)
}

func TestRoleFor(t *testing.T) {
	repo := newMockRepo()
	addUser(repo, 7, "manager@test.local", "manager12345", "manager", true)
	repo.roles[9] = "superuser"
	svc := NewService(repo, time.Hour)

	role, err := svc.RoleFor(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleManager, role)

	_, err = svc.RoleFor(context.Background(), 9)
	assert.ErrorIs(t, err, shared.ErrNotFound, "roles outside the closed set do not resolve")

	_, err = svc.RoleFor(context.Background(), 404)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
