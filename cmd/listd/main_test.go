package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/shared-list/pkg/cli"
	"github.com/astromechza/shared-list/pkg/guard"
)

// clearCodeEnv unsets the access code variables for the rest of the test.
func clearCodeEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"LIST_ACCESS_CODE", "LISTD_ACCESS_CODE"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func startServer(t *testing.T, flags map[string]string) string {
	t.Helper()

	cmd := newServeCmd()
	for k, v := range flags {
		require.NoError(t, cmd.Flags().Set(k, v))
	}
	c := cli.NewConfig("LISTD")
	c.MustBindEnv("access-code", "LIST_ACCESS_CODE", "LISTD_ACCESS_CODE")
	require.NoError(t, c.Load(cmd, ""))

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- serve(ctx, c, ready) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Error("server did not stop")
		}
	})

	select {
	case addr := <-ready:
		return "http://" + addr
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not start")
	}
	return ""
}

func get(t *testing.T, url, code string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if code != "" {
		req.Header.Set(guard.Header, code)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestServe_FallbackCode(t *testing.T) {
	clearCodeEnv(t)
	base := startServer(t, map[string]string{"addr": "127.0.0.1:0", "store": "memory"})

	status, body := get(t, base+"/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK\n", body)

	status, body = get(t, base+"/api/list", guard.FallbackCode)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"items":[]}`, body)
}

func TestServe_ConfiguredCodeAndSQLite(t *testing.T) {
	clearCodeEnv(t)
	base := startServer(t, map[string]string{
		"addr":        "127.0.0.1:0",
		"store":       "sqlite:" + filepath.Join(t.TempDir(), "list.sqlite3"),
		"access-code": "opensesame",
	})

	status, _ := get(t, base+"/api/list", guard.FallbackCode)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = get(t, base+"/api/list", "opensesame")
	assert.Equal(t, http.StatusOK, status)
}

func TestServe_BlankCodeDeniesAll(t *testing.T) {
	clearCodeEnv(t)
	t.Setenv("LIST_ACCESS_CODE", "   ")
	base := startServer(t, map[string]string{"addr": "127.0.0.1:0", "store": "memory"})

	status, _ := get(t, base+"/api/list", guard.FallbackCode)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = get(t, base+"/api/list", "   ")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = get(t, base+"/healthz", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestServe_BadStore(t *testing.T) {
	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Set("store", ""))
	c := cli.NewConfig("LISTD")
	require.NoError(t, c.Load(cmd, ""))
	require.ErrorContains(t, serve(context.Background(), c, nil), "failed to open store")
}
