package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lgu-assessor/faas-api/internal/models"
	appErrors "github.com/lgu-assessor/faas-api/pkg/errors"
)

type userRepoStub struct {
	users      map[string]*models.User
	lastLogins []string
}

func newUserRepoStub(users ...*models.User) *userRepoStub {
	stub := &userRepoStub{users: map[string]*models.User{}}
	for _, user := range users {
		stub.users[user.ID] = user
	}
	return stub
}

func (s *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	s.lastLogins = append(s.lastLogins, id)
	return nil
}

func testAuthService(t *testing.T, users ...*models.User) (*AuthService, *userRepoStub, *auditStoreStub) {
	t.Helper()
	repo := newUserRepoStub(users...)
	audits := &auditStoreStub{}
	svc := NewAuthService(repo, audits, nil, nil, AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "faas-api",
	})
	return svc, repo, audits
}

func testUser(t *testing.T) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-password"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "encoder@lgu.gov.ph",
		PasswordHash: string(hash),
		FullName:     "Test Encoder",
		Role:         models.RoleEncoder,
		Active:       true,
	}
}

func TestAuthLoginIssuesToken(t *testing.T) {
	svc, repo, audits := testAuthService(t, testUser(t))

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "encoder@lgu.gov.ph",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.Equal(t, models.RoleEncoder, resp.User.Role)
	assert.Equal(t, []string{"user-1"}, repo.lastLogins)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditActionLogin, audits.entries[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleEncoder, claims.Role)
}

func TestAuthLoginRejectsBadPassword(t *testing.T) {
	svc, _, _ := testAuthService(t, testUser(t))

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "encoder@lgu.gov.ph",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginRejectsUnknownEmail(t *testing.T) {
	svc, _, _ := testAuthService(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@lgu.gov.ph",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginRejectsInactiveAccount(t *testing.T) {
	user := testUser(t)
	user.Active = false
	svc, _, _ := testAuthService(t, user)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "encoder@lgu.gov.ph",
		Password: "s3cret-password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginValidatesPayload(t *testing.T) {
	svc, _, _ := testAuthService(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenRejectsTampering(t *testing.T) {
	svc, _, _ := testAuthService(t, testUser(t))
	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "encoder@lgu.gov.ph",
		Password: "s3cret-password",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	assert.Error(t, err)
}

func TestAuthCurrentUserRejectsDeactivated(t *testing.T) {
	user := testUser(t)
	svc, repo, _ := testAuthService(t, user)
	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "encoder@lgu.gov.ph",
		Password: "s3cret-password",
	})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)

	repo.users["user-1"].Active = false
	_, err = svc.CurrentUser(context.Background(), claims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}
