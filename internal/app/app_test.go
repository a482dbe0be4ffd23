package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvcompare/internal/config"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(key string) (string, bool) {
		switch key {
		case "SERVER_HOST":
			return "127.0.0.1", true
		case "SERVER_SHUTDOWN_TIMEOUT":
			return "2s", true
		}
		return "", false
	})
	require.NoError(t, err)
	return cfg
}

func TestNew_MemoryStore(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(t))
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, int64(50<<20), a.Service().MaxFileSize())
	assert.Equal(t, 4, a.Service().LimiterStatus().MaxConcurrent)
}

func TestNew_InvalidSchedule(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Retention.Schedule = "sometimes"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid retention schedule")
}

func TestNew_BadDatabaseURL(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Database.URL = "postgres://%zz"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database URL")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Server.Port = 0
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
