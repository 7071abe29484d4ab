package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easeemail/easeemail/config"
	"github.com/easeemail/easeemail/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:      config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Security:    config.SecurityConfig{SecretKey: "test-secret-key"},
		Environment: "test",
		LogLevel:    "error",
	}
}

func newTestApp(t *testing.T) *App {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewApp(testConfig(), WithMockDB(db), WithLogger(logger.NewTestLogger(t)))
}

func TestAppWiring(t *testing.T) {
	a := newTestApp(t)

	require.NoError(t, a.InitRepositories())
	require.NoError(t, a.InitServices())
	require.NoError(t, a.InitHandlers())

	assert.NotNil(t, a.GetMux())
	assert.NotNil(t, a.GetDB())
}

func TestAppRoutes(t *testing.T) {
	a := newTestApp(t)
	require.NoError(t, a.InitRepositories())
	require.NoError(t, a.InitServices())
	require.NoError(t, a.InitHandlers())

	t.Run("liveness endpoint is registered", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		rec := httptest.NewRecorder()
		a.GetMux().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("intake rejects anonymous requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/send/email?template=welcome", nil)
		rec := httptest.NewRecorder()
		a.GetMux().ServeHTTP(rec, req)

		// No body at all fails before any lookup
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestInitRepositoriesRequiresDB(t *testing.T) {
	a := NewApp(testConfig(), WithLogger(logger.NewTestLogger(t)))
	assert.Error(t, a.InitRepositories())
}
