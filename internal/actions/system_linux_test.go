package actions

import (
	"net"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"keyrunner/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemPack_Resources(t *testing.T) {
	reg, _ := newTestRegistry(t, config.GetDefaultConfig())

	for _, kw := range []string{"memory_usage", "disk_usage"} {
		v, err := call(t, reg, kw, map[string]any{})
		require.NoError(t, err, kw)
		pct := v.(float64)
		assert.True(t, pct >= 0 && pct <= 100, "%s = %v", kw, pct)
	}

	v, err := call(t, reg, "cpu_usage", map[string]any{"interval": "50ms"})
	require.NoError(t, err)
	pct := v.(float64)
	assert.True(t, pct >= 0 && pct <= 100, "cpu_usage = %v", pct)

	v, err = call(t, reg, "uptime", nil)
	require.NoError(t, err)
	assert.Greater(t, v.(float64), 0.0)

	_, err = call(t, reg, "disk_usage", map[string]any{"path": "/does/not/exist"})
	assert.Error(t, err)
}

func TestSystemPack_PortListening(t *testing.T) {
	reg, _ := newTestRegistry(t, config.GetDefaultConfig())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	v, err := call(t, reg, "port_listening", map[string]any{"port": port})
	require.NoError(t, err)
	assert.Equal(t, true, v)

	require.NoError(t, ln.Close())
	v, err = call(t, reg, "port_listening", map[string]any{"port": port})
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestSystemPack_Processes(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not found")
	}
	reg, _ := newTestRegistry(t, config.GetDefaultConfig())

	cmd := exec.Command(sleep, "3141")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	name := "sleep 3141"
	v, err := call(t, reg, "process_exists", map[string]any{"name": name})
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = call(t, reg, "process_count", map[string]any{"name": name})
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = call(t, reg, "kill_process", map[string]any{"name": name, "signal": "KILL"})
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatal("process was not killed")
	}

	v, err = call(t, reg, "process_exists", map[string]any{"name": name})
	require.NoError(t, err)
	assert.Equal(t, false, v)

	v, err = call(t, reg, "kill_process", map[string]any{"name": name})
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestSignalParam(t *testing.T) {
	tests := []struct {
		raw  any
		want syscall.Signal
	}{
		{nil, syscall.SIGTERM},
		{9, syscall.SIGKILL},
		{"9", syscall.SIGKILL},
		{"KILL", syscall.SIGKILL},
		{"sigterm", syscall.SIGTERM},
	}
	for _, tt := range tests {
		params := map[string]any{}
		if tt.raw != nil {
			params["signal"] = tt.raw
		}
		sig, err := signalParam(params)
		require.NoError(t, err, "%v", tt.raw)
		assert.Equal(t, tt.want, sig, "%v", tt.raw)
	}
}
