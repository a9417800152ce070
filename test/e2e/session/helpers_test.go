package session_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	httpapi "github.com/tabsession/sessiond/internal/auth/http"
	"github.com/tabsession/sessiond/internal/auth/service"
	redisdriver "github.com/tabsession/sessiond/internal/auth/store/drivers/redis"
	"github.com/tabsession/sessiond/internal/auth/store/drivers/sqlite"
	"github.com/tabsession/sessiond/pkg/jwtx"
)

/*
 * End-to-end tests for the session service against a real Redis instance.
 * The in-memory store used by the unit tests covers the command surface;
 * these verify the Lua-scripted revocation and TTL behavior on the real
 * server. Requires a local Docker daemon; skipped with -short.
 */

const redisImage = "redis:7-alpine"

// startRedis runs a throwaway Redis container and returns a connected client.
func startRedis(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        redisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())

	return rdb
}

type env struct {
	server  *httptest.Server
	tokens  *redisdriver.Store
	refresh *jwtx.Codec
}

// newEnv wires the full service stack over a containerized Redis and a
// temp-file SQLite database, served through httptest.
func newEnv(t *testing.T) *env {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed tests in short mode")
	}

	rdb := startRedis(t)
	tokens := redisdriver.NewStore(rdb, 3*time.Second)

	users, err := sqlite.NewStore("file:" + t.TempDir() + "/users.db?_busy_timeout=5000")
	require.NoError(t, err)
	require.NoError(t, users.ApplyMigrations())
	t.Cleanup(func() { _ = users.Close() })

	access, err := jwtx.NewCodec([]byte("e2e-access-secret"), "sessiond-e2e", jwtx.DefaultAccessTokenTTL)
	require.NoError(t, err)
	refresh, err := jwtx.NewCodec([]byte("e2e-refresh-secret"), "sessiond-e2e", jwtx.DefaultRefreshTokenTTL)
	require.NoError(t, err)

	sessions, err := service.NewSessionService(
		users, tokens, access, refresh, service.PolicyRevokeAll, 0,
	)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := httpapi.NewRouter(access, false, users, tokens, logger)
	router.SessionService = sessions
	router.UserService = &service.UserService{Users: users}
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &env{server: server, tokens: tokens, refresh: refresh}
}

func (e *env) post(t *testing.T, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(e.server.URL+path, "application/json", &buf)
	require.NoError(t, err)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, payload
}

type sessionPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

func (e *env) registerAndLogin(t *testing.T, email, password string) sessionPayload {
	t.Helper()

	resp, _ := e.post(t, "/v1/auth/register", map[string]string{
		"email": email, "password": password, "displayName": "E2E",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, payload := e.post(t, "/v1/auth/login", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session sessionPayload
	require.NoError(t, json.Unmarshal(payload, &session))
	return session
}
