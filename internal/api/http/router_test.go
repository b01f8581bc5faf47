package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/hotel-booking/internal/api/http/handlers"
	"github.com/spec-kit/hotel-booking/internal/auth"
	"github.com/spec-kit/hotel-booking/internal/clock"
	"github.com/spec-kit/hotel-booking/internal/config"
	"github.com/spec-kit/hotel-booking/internal/domain"
	"github.com/spec-kit/hotel-booking/internal/events"
	"github.com/spec-kit/hotel-booking/internal/observability"
	"github.com/spec-kit/hotel-booking/internal/repository"
	"github.com/spec-kit/hotel-booking/internal/service"
)

type memoryUsers struct {
	mu     sync.Mutex
	byMail map[string]*domain.User
	nextID int64
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byMail[user.Email]; ok {
		return domain.ErrEmailTaken
	}
	m.nextID++
	user.ID = m.nextID
	m.byMail[user.Email] = user
	return nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byMail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (m *memoryUsers) VerifyPassword(ctx context.Context, email, plaintext string) (bool, error) {
	user, err := m.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return auth.PasswordMatches(user.PasswordHash, plaintext)
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	app     *fiber.App
	clock   *clock.Manual
	users   *memoryUsers
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, store repository.RefreshTokenStore) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clk := clock.NewManual(time.Unix(1000, 0))
	users := &memoryUsers{byMail: make(map[string]*domain.User)}
	metrics := observability.NewMetrics()
	if store == nil {
		store = repository.NewMemoryRefreshTokenStore()
	}

	codec, err := auth.NewTokenCodec("router-test-secret")
	require.NoError(t, err)

	authCfg := config.AuthConfig{
		AccessTokenTTLSeconds:  900,
		RefreshTokenTTLSeconds: 604800,
		RotateRefreshTokens:    true,
		StoreTimeoutSeconds:    1,
		BcryptCost:             bcrypt.MinCost,
	}
	dispatcher := events.NewInMemoryDispatcher()
	service.NewAuditService(dispatcher, logger, metrics, config.AuditConfig{}).RegisterHandlers()

	tokens := service.NewTokenService(authCfg, service.TokenDependencies{
		Codec: codec, Store: store, Users: users, Dispatcher: dispatcher, Logger: logger,
	})
	authService := service.NewAuthService(authCfg, service.AuthDependencies{UserRepo: users, Tokens: tokens})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("hotel-booking-auth", "test", map[string]handlers.Pinger{
			"store": pingFunc(func(context.Context) error { return nil }),
		}),
		Metrics:       handlers.NewMetricsHandler(metrics),
		Auth:          handlers.NewAuthHandler(authService, tokens, clk),
		Authenticator: auth.NewAuthenticator(codec, users, clk, logger, time.Second),
	})
	return &testServer{app: app, clock: clk, users: users, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) register(t *testing.T, email, password string) {
	t.Helper()
	status, _ := s.do(t, http.MethodPost, "/auth/register-user", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, status)
}

func (s *testServer) login(t *testing.T, email, password string) (access, refresh string) {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, body)
	return body["accessToken"].(string), body["refreshToken"].(string)
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestRegisterAndLoginFlow(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, http.MethodPost, "/auth/register-user", "", map[string]string{"email": "a@b.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "a@b.com", body["email"])
	assert.Equal(t, []any{domain.RoleUser}, body["roles"])

	status, body = s.do(t, http.MethodPost, "/auth/register-user", "", map[string]string{"email": "a@b.com", "password": "pw"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.com", "password": "pw"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Bearer", body["type"])
	assert.Equal(t, float64(1), body["id"])
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])

	status, body = s.do(t, http.MethodGet, "/auth/me", body["accessToken"].(string), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a@b.com", body["email"])
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "a@b.com", "pw")

	_, wrongPassword := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.com", "password": "nope"})
	status, unknown := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "x@b.com", "password": "pw"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, wrongPassword, unknown)

	status, body := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.com"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestRefreshScenarioOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "a@b.com", "pw")
	access, refresh := s.login(t, "a@b.com", "pw")

	s.clock.Set(time.Unix(1901, 0))
	status, _ := s.do(t, http.MethodGet, "/auth/me", access, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, status)
	next := body["accessToken"].(string)
	assert.NotEqual(t, refresh, body["refreshToken"])

	status, body = s.do(t, http.MethodGet, "/auth/me", next, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a@b.com", body["email"])

	s.clock.Set(time.Unix(2801, 0))
	status, _ = s.do(t, http.MethodGet, "/auth/me", next, nil)
	assert.Equal(t, http.StatusOK, status)

	s.clock.Set(time.Unix(2802, 0))
	status, _ = s.do(t, http.MethodGet, "/auth/me", next, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRefreshFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "a@b.com", "pw")
	access, refresh := s.login(t, "a@b.com", "pw")

	_, revokedBody := s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	require.Contains(t, revokedBody, "accessToken")

	bodies := []map[string]any{}
	for _, token := range []string{refresh, access, "garbage", ""} {
		status, body := s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": token})
		assert.Equal(t, http.StatusUnauthorized, status, token)
		bodies = append(bodies, body)
	}
	s.clock.Set(time.Unix(1000+604801, 0))
	status, expired := s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": revokedBody["refreshToken"].(string)})
	assert.Equal(t, http.StatusUnauthorized, status)
	bodies = append(bodies, expired)

	for _, body := range bodies[1:] {
		assert.Equal(t, bodies[0], body)
	}
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "a@b.com", "pw")
	access, refresh := s.login(t, "a@b.com", "pw")

	status, _ := s.do(t, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := s.do(t, http.MethodPost, "/auth/logout", access, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "logged out!", body["message"])

	status, _ = s.do(t, http.MethodPost, "/auth/logout", access, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, status)

	// Access tokens outlive logout until they expire.
	status, _ = s.do(t, http.MethodGet, "/auth/me", access, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestRevokeSessionRequiresAdmin(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "a@b.com", "pw")
	s.register(t, "admin@b.com", "pw")
	admin, _ := s.users.FindByEmail(context.Background(), "admin@b.com")
	admin.Roles = []string{domain.RoleUser, domain.RoleAdmin}

	userAccess, userRefresh := s.login(t, "a@b.com", "pw")
	adminAccess, _ := s.login(t, "admin@b.com", "pw")

	status, _ := s.do(t, http.MethodDelete, "/auth/sessions/a@b.com", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := s.do(t, http.MethodDelete, "/auth/sessions/admin@b.com", userAccess, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, _ = s.do(t, http.MethodDelete, "/auth/sessions/a%40b.com", adminAccess, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": userRefresh})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestStorageOutageIsServiceUnavailable(t *testing.T) {
	s := newTestServer(t, downStore{})
	s.register(t, "a@b.com", "pw")

	status, body := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@b.com", "password": "pw"})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "STORAGE_UNAVAILABLE", errorCode(body))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": "garbage"})

	status, body = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	outcomes := body["auth_outcomes"].(map[string]any)
	assert.Equal(t, float64(1), outcomes["refresh|rejected"])
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	status, body := s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

type downStore struct{}

func (downStore) Put(context.Context, string, string, time.Time) error {
	return fmt.Errorf("%w: put: dial tcp", domain.ErrStorageUnavailable)
}

func (downStore) Get(context.Context, string) (*domain.RefreshTokenRecord, error) {
	return nil, fmt.Errorf("%w: get: dial tcp", domain.ErrStorageUnavailable)
}

func (downStore) Delete(context.Context, string) error {
	return fmt.Errorf("%w: delete: dial tcp", domain.ErrStorageUnavailable)
}

func (downStore) Swap(context.Context, string, string, string, time.Time) (bool, error) {
	return false, fmt.Errorf("%w: swap: dial tcp", domain.ErrStorageUnavailable)
}
