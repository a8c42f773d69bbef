package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apihttp "github.com/opsdesk/helpdesk-service/internal/api/http"
	"github.com/opsdesk/helpdesk-service/internal/auth"
	"github.com/opsdesk/helpdesk-service/internal/domain"
	"github.com/opsdesk/helpdesk-service/internal/observability"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) List(ctx context.Context, roleFilter *domain.Role) ([]domain.User, error) {
	args := m.Called(ctx, roleFilter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	args := m.Called(ctx, id, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type fakeDenylist struct {
	revoked map[string]bool
}

func (f *fakeDenylist) Revoke(_ context.Context, jti string, _ time.Duration) error {
	if f.revoked == nil {
		f.revoked = map[string]bool{}
	}
	f.revoked[jti] = true
	return nil
}

func (f *fakeDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], nil
}

func newTestApp(t *testing.T, tm *auth.TokenManager, users *mockUserRepo, denylist auth.TokenDenylist) *fiber.App {
	t.Helper()
	app := fiber.New()
	apihttp.RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0)

	mw := auth.NewAuthMiddleware(tm, users, denylist)
	ok := func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) }
	app.Get("/protected", mw.Handle, ok)
	app.Get("/admin", mw.Handle, auth.RequireAdmin(), ok)
	return app
}

func request(path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	tm := auth.NewTokenManager("secret", 60)
	app := newTestApp(t, tm, &mockUserRepo{}, &fakeDenylist{})

	resp, err := app.Test(request("/protected", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	tm := auth.NewTokenManager("secret", 60)
	app := newTestApp(t, tm, &mockUserRepo{}, &fakeDenylist{})

	resp, err := app.Test(request("/protected", "garbage"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	tm := auth.NewTokenManager("secret", 60)
	users := &mockUserRepo{}
	users.On("GetByID", mock.Anything, "u-1").
		Return(&domain.User{ID: "u-1", Email: "a@b.com", Role: domain.RoleSupport}, nil)
	app := newTestApp(t, tm, users, &fakeDenylist{})

	token, _, err := tm.GenerateToken("u-1", domain.RoleSupport)
	require.NoError(t, err)

	resp, err := app.Test(request("/protected", token))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_UnknownUser(t *testing.T) {
	tm := auth.NewTokenManager("secret", 60)
	users := &mockUserRepo{}
	users.On("GetByID", mock.Anything, "gone").Return(nil, pgx.ErrNoRows)
	app := newTestApp(t, tm, users, &fakeDenylist{})

	token, _, err := tm.GenerateToken("gone", domain.RoleUser)
	require.NoError(t, err)

	resp, err := app.Test(request("/protected", token))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_RevokedToken(t *testing.T) {
	tm := auth.NewTokenManager("secret", 60)
	users := &mockUserRepo{}
	users.On("GetByID", mock.Anything, "u-1").
		Return(&domain.User{ID: "u-1", Role: domain.RoleUser}, nil)
	denylist := &fakeDenylist{}
	app := newTestApp(t, tm, users, denylist)

	token, _, err := tm.GenerateToken("u-1", domain.RoleUser)
	require.NoError(t, err)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	require.NoError(t, denylist.Revoke(context.Background(), claims.ID, time.Hour))

	resp, err := app.Test(request("/protected", token))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAdmin(t *testing.T) {
	tm := auth.NewTokenManager("secret", 60)

	cases := []struct {
		role       domain.Role
		wantStatus int
	}{
		{domain.RoleUser, http.StatusForbidden},
		{domain.RoleSupport, http.StatusForbidden},
		{domain.RoleAdmin, http.StatusOK},
	}

	for _, tc := range cases {
		users := &mockUserRepo{}
		users.On("GetByID", mock.Anything, "u-1").
			Return(&domain.User{ID: "u-1", Role: tc.role}, nil)
		app := newTestApp(t, tm, users, &fakeDenylist{})

		token, _, err := tm.GenerateToken("u-1", tc.role)
		require.NoError(t, err)

		resp, err := app.Test(request("/admin", token))
		require.NoError(t, err)
		assert.Equalf(t, tc.wantStatus, resp.StatusCode, "role %s", tc.role)
	}
}
