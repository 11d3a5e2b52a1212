package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wricardo/gridiron-odds/matchup/config"
	"github.com/wricardo/gridiron-odds/matchup/service"
	"github.com/wricardo/gridiron-odds/matchup/session"
	"github.com/wricardo/gridiron-odds/transport/websocket/wstest"
)

func TestConstants(t *testing.T) {
	assert.Equal(t, "1.0.0", Version)
	assert.Equal(t, "Gridiron Odds", AppName)
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, 0, *port, "port comes from config unless overridden")
	assert.Equal(t, "localhost", *host)
	assert.False(t, *debug)
	assert.False(t, *ngrokEnabled)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("", 0, false)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.LogLevel)

	cfg, err = loadConfig("", 9191, true)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.LogLevel)

	path := filepath.Join(t.TempDir(), "matchup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  url: http://nope\n"), 0o644))
	_, err = loadConfig(path, 0, false)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("warn", false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = newLogger("debug", true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = newLogger("loud", false)
	assert.Error(t, err)
}

func startApp(t *testing.T, respond wstest.Responder) (*application, *wstest.Backend) {
	t.Helper()
	backend := wstest.NewBackend(t, respond)

	cfg := config.Default()
	cfg.Backend.URL = backend.URL()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	app, err := initializeServices(ctx, &cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	require.Eventually(t, func() bool { return app.conn.Connected() }, 2*time.Second, 5*time.Millisecond)
	return app, backend
}

func TestInitializeServices(t *testing.T) {
	app, backend := startApp(t, wstest.Prediction(0.41))

	status := app.service.Status(context.Background())
	assert.True(t, status.Connected)
	assert.Equal(t, backend.URL(), status.Backend)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := app.service.PredictAndWait(ctx, "main", session.PredictionQuery{Team: "MIN", Season1: 2023, Opponent: "BUF", Season2: 2023})
	require.NoError(t, err)
}

func TestInitializeServices_BadTeamsFile(t *testing.T) {
	cfg := config.Default()
	cfg.TeamsFile = filepath.Join(t.TempDir(), "missing.json")

	_, err := initializeServices(context.Background(), &cfg, zap.NewNop())
	assert.ErrorContains(t, err, "failed to load team catalog")
}

func TestHTTPHandler(t *testing.T) {
	app, _ := startApp(t, nil)
	srv := httptest.NewServer(app.handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	var status service.ConnectionStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, "open", status.State)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "matchup_connection_state")
	assert.Contains(t, string(body), "matchup_pages")
	assert.Contains(t, string(body), "matchup_browser_clients")

	resp, err = http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPageCleanupRoutine(t *testing.T) {
	app, _ := startApp(t, nil)
	_, err := app.pages.Create("stale")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pageCleanupRoutine(ctx, app.pages, 20*time.Millisecond, zap.NewNop())

	require.Eventually(t, func() bool { return app.pages.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRunHTTPServer_StopsOnCancel(t *testing.T) {
	app, _ := startApp(t, nil)

	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Server.Port = l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runHTTPServer(ctx, &cfg, app) }()

	url := fmt.Sprintf("http://localhost:%d/api/health", cfg.Server.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runHTTPServer did not return after cancel")
	}
}

func TestRunHTTPServer_ReturnsListenError(t *testing.T) {
	app, _ := startApp(t, nil)

	l, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer l.Close()
	cfg := config.Default()
	cfg.Server.Port = l.Addr().(*net.TCPAddr).Port

	done := make(chan error, 1)
	go func() { done <- runHTTPServer(context.Background(), &cfg, app) }()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "HTTP server failed")
	case <-time.After(5 * time.Second):
		t.Fatal("runHTTPServer did not report the listen error")
	}
}
