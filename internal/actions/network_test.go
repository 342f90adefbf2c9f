package actions

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"keyrunner/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPort(t *testing.T) {
	reg, _ := newTestRegistry(t, config.GetDefaultConfig())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	v, err := call(t, reg, "check_port", map[string]any{"host": "127.0.0.1", "port": strconv.Itoa(port), "timeout": "1s"})
	require.NoError(t, err)
	assert.Equal(t, true, v)

	require.NoError(t, ln.Close())
	v, err = call(t, reg, "check_port", map[string]any{"host": "127.0.0.1", "port": port, "timeout": 1})
	require.NoError(t, err)
	assert.Equal(t, false, v)

	_, err = call(t, reg, "check_port", map[string]any{"host": "127.0.0.1", "port": 70000})
	assert.Error(t, err)
}

func TestHTTPRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/items":
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"method":       r.Method,
				"content_type": r.Header.Get("Content-Type"),
				"token":        r.Header.Get("X-Token"),
				"body":         string(body),
			})
		case "/missing":
			http.NotFound(w, r)
		default:
			_, _ = w.Write([]byte("plain"))
		}
	}))
	defer srv.Close()

	cfg := config.GetDefaultConfig()
	cfg.HTTP.BaseURL = srv.URL
	cfg.HTTP.Retries = 0
	reg, _ := newTestRegistry(t, cfg)

	v, err := call(t, reg, "http_request", map[string]any{
		"url":           "/items",
		"method":        "post",
		"headers":       map[string]any{"X-Token": "abc"},
		"body":          map[string]any{"name": "widget"},
		"expect_status": 200,
	})
	require.NoError(t, err)
	out := v.(map[string]any)
	assert.Equal(t, 200, out["status"])
	decoded := out["json"].(map[string]any)
	assert.Equal(t, "POST", decoded["method"])
	assert.Equal(t, "application/json", decoded["content_type"])
	assert.Equal(t, "abc", decoded["token"])
	assert.JSONEq(t, `{"name":"widget"}`, decoded["body"].(string))

	v, err = call(t, reg, "http_request", map[string]any{"url": srv.URL + "/other"})
	require.NoError(t, err)
	out = v.(map[string]any)
	assert.Equal(t, "plain", out["body"])
	assert.NotContains(t, out, "json")

	_, err = call(t, reg, "http_request", map[string]any{"url": "/missing", "expect_status": "200"})
	assert.Error(t, err)

	v, err = call(t, reg, "http_request", map[string]any{"url": "/missing"})
	require.NoError(t, err)
	assert.Equal(t, 404, v.(map[string]any)["status"])
}
