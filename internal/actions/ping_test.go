package actions

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"keyrunner/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linuxPingOutput = `PING 10.0.0.5 (10.0.0.5) 56(84) bytes of data.
64 bytes from 10.0.0.5: icmp_seq=1 ttl=64 time=0.045 ms

--- 10.0.0.5 ping statistics ---
4 packets transmitted, 3 received, 25% packet loss, time 3050ms`

func TestParsePacketLoss(t *testing.T) {
	assert.Equal(t, 25.0, parsePacketLoss(linuxPingOutput))
	assert.Equal(t, 0.0, parsePacketLoss("3 packets transmitted, 3 packets received, 0.0% packet loss"))
	assert.Equal(t, 100.0, parsePacketLoss("ping: unknown host nowhere"))
}

// fakePinger answers for the hosts in up and fails everything else.
func fakePinger(up ...string) Pinger {
	return func(_ context.Context, host string, count int, _ time.Duration) (PingResult, error) {
		for _, h := range up {
			if h == host {
				return PingResult{Success: true, Output: "ok"}, nil
			}
		}
		if host == "broken" {
			return PingResult{}, errors.New("ping not installed")
		}
		return PingResult{PacketLoss: 100, Output: "timeout"}, nil
	}
}

func TestPing(t *testing.T) {
	reg, _ := newTestRegistry(t, config.GetDefaultConfig(), WithPinger(fakePinger("10.0.0.1")))

	v, err := call(t, reg, "ping", map[string]any{"host": "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"success": true, "packet_loss": 0.0, "output": "ok"}, v)

	_, err = call(t, reg, "ping", map[string]any{"host": "10.0.0.2"})
	assert.ErrorContains(t, err, "100.0% packet loss")

	v, err = call(t, reg, "ping", map[string]any{"host": "10.0.0.2", "check": false})
	require.NoError(t, err)
	assert.Equal(t, false, v.(map[string]any)["success"])

	_, err = call(t, reg, "ping", map[string]any{"host": "broken"})
	assert.Error(t, err)

	_, err = call(t, reg, "ping", map[string]any{"host": "10.0.0.1", "count": 0})
	assert.Error(t, err)
}

func TestCheckNodes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	open := ln.Addr().(*net.TCPAddr).Port

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closed.Addr().(*net.TCPAddr).Port
	require.NoError(t, closed.Close())

	reg, _ := newTestRegistry(t, config.GetDefaultConfig(), WithPinger(fakePinger("127.0.0.1")))
	nodes := []any{
		map[string]any{"name": "adn-1", "ip": "127.0.0.1", "ssh_port": open},
		map[string]any{"name": "adn-2", "host": "127.0.0.1", "port": closedPort},
		map[string]any{"host": "10.9.9.9", "port": 0},
	}

	v, err := call(t, reg, "check_nodes", map[string]any{"nodes": nodes, "check": false, "timeout": "1s"})
	require.NoError(t, err)
	reports := v.([]any)
	require.Len(t, reports, 3)

	first := reports[0].(map[string]any)
	assert.Equal(t, "adn-1", first["node"])
	assert.Equal(t, "success", first["status"])
	assert.Len(t, first["checks"], 2)

	second := reports[1].(map[string]any)
	assert.Equal(t, "failed", second["status"])
	portCheck := second["checks"].([]any)[1].(map[string]any)
	assert.Equal(t, "port", portCheck["type"])
	assert.Equal(t, false, portCheck["success"])

	third := reports[2].(map[string]any)
	assert.Equal(t, "10.9.9.9", third["node"])
	assert.Equal(t, "failed", third["status"])
	assert.Len(t, third["checks"], 1)

	_, err = call(t, reg, "check_nodes", map[string]any{"nodes": nodes, "timeout": "1s"})
	assert.ErrorContains(t, err, "2 of 3 nodes failed: 10.9.9.9, adn-2")

	v, err = call(t, reg, "check_nodes", map[string]any{"nodes": nodes[:1]})
	require.NoError(t, err)
	assert.Len(t, v, 1)

	_, err = call(t, reg, "check_nodes", map[string]any{"nodes": []any{map[string]any{"name": "x"}}})
	assert.Error(t, err)
	_, err = call(t, reg, "check_nodes", map[string]any{"nodes": []any{}})
	assert.Error(t, err)
}
