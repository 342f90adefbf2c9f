package actions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"keyrunner/internal/template"
	"keyrunner/pkg/logging"
)

// PingResult is the outcome of one ping run.
type PingResult struct {
	Success    bool
	PacketLoss float64
	Output     string
}

// Pinger sends count echo requests to host.
type Pinger func(ctx context.Context, host string, count int, timeout time.Duration) (PingResult, error)

var packetLossPattern = regexp.MustCompile(`([0-9.]+)% packet loss`)

// parsePacketLoss extracts the loss percentage from ping output. Output
// without a summary line counts as total loss.
func parsePacketLoss(output string) float64 {
	m := packetLossPattern.FindStringSubmatch(output)
	if m == nil {
		return 100
	}
	loss, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 100
	}
	return loss
}

// execPing runs the system ping binary.
func execPing(ctx context.Context, host string, count int, timeout time.Duration) (PingResult, error) {
	wait := int(math.Ceil(timeout.Seconds()))
	if wait < 1 {
		wait = 1
	}
	cmd := exec.CommandContext(ctx, "ping", "-c", strconv.Itoa(count), "-W", strconv.Itoa(wait), host)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	result := PingResult{Output: strings.TrimSpace(out.String())}
	result.PacketLoss = parsePacketLoss(result.Output)
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return result, fmt.Errorf("failed to run ping: %w", err)
		}
		return result, nil
	}
	result.Success = true
	return result, nil
}

func (e *Environment) ping(ctx context.Context, params map[string]any) (any, error) {
	host, err := requiredString(params, "host")
	if err != nil {
		return nil, err
	}
	count, err := intParam(params, "count", 4)
	if err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, fmt.Errorf("count must be at least 1, got %d", count)
	}
	timeout, err := durationParam(params, "timeout", 5*time.Second)
	if err != nil {
		return nil, err
	}
	check, err := boolParam(params, "check", true)
	if err != nil {
		return nil, err
	}

	res, err := e.pinger(ctx, host, count, timeout)
	if err != nil {
		return nil, err
	}
	logging.Debug("Actions", "ping %s: success=%t loss=%.1f%%", host, res.Success, res.PacketLoss)
	if check && !res.Success {
		return nil, fmt.Errorf("ping %s failed with %.1f%% packet loss", host, res.PacketLoss)
	}
	return map[string]any{
		"success":     res.Success,
		"packet_loss": res.PacketLoss,
		"output":      res.Output,
	}, nil
}

// node is one entry of check_nodes' node list.
type node struct {
	name string
	host string
	port int
}

func parseNodes(raw []any, defaultPort int) ([]node, error) {
	nodes := make([]node, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("node %d must be a mapping, got %T", i, item)
		}
		n := node{port: defaultPort}
		for _, key := range []string{"host", "ip"} {
			if v, ok := m[key]; ok && n.host == "" {
				n.host = template.Stringify(v)
			}
		}
		if n.host == "" {
			return nil, fmt.Errorf("node %d has no host", i)
		}
		n.name = n.host
		if v, ok := m["name"]; ok {
			n.name = template.Stringify(v)
		}
		for _, key := range []string{"port", "ssh_port"} {
			if _, ok := m[key]; ok {
				p, err := intParam(m, key, defaultPort)
				if err != nil {
					return nil, fmt.Errorf("node %s: %w", n.name, err)
				}
				n.port = p
				break
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (e *Environment) checkNode(ctx context.Context, n node, count int, timeout time.Duration) map[string]any {
	checks := make([]any, 0, 2)
	ok := true

	ping, err := e.pinger(ctx, n.host, count, timeout)
	if err != nil {
		logging.Warn("Actions", "check_nodes: ping %s: %v", n.host, err)
	}
	checks = append(checks, map[string]any{
		"type":        "ping",
		"success":     err == nil && ping.Success,
		"packet_loss": ping.PacketLoss,
	})
	ok = ok && err == nil && ping.Success

	if n.port > 0 {
		open := dialPort(ctx, n.host, n.port, timeout)
		checks = append(checks, map[string]any{
			"type":    "port",
			"port":    n.port,
			"success": open,
		})
		ok = ok && open
	}

	status := "success"
	if !ok {
		status = "failed"
	}
	return map[string]any{
		"node":   n.name,
		"host":   n.host,
		"status": status,
		"checks": checks,
	}
}

func (e *Environment) checkNodes(ctx context.Context, params map[string]any) (any, error) {
	raw, err := listParam(params, "nodes")
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf(`parameter "nodes" must not be empty`)
	}
	defaultPort, err := intParam(params, "port", 22)
	if err != nil {
		return nil, err
	}
	nodes, err := parseNodes(raw, defaultPort)
	if err != nil {
		return nil, err
	}
	count, err := intParam(params, "count", 2)
	if err != nil {
		return nil, err
	}
	timeout, err := durationParam(params, "timeout", 5*time.Second)
	if err != nil {
		return nil, err
	}
	parallel, err := intParam(params, "parallel", 4)
	if err != nil {
		return nil, err
	}
	check, err := boolParam(params, "check", true)
	if err != nil {
		return nil, err
	}

	reports := make([]any, len(nodes))
	var mu sync.Mutex
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for i, n := range nodes {
		g.Go(func() error {
			report := e.checkNode(gctx, n, count, timeout)
			reports[i] = report
			if report["status"] != "success" {
				mu.Lock()
				failed = append(failed, n.name)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(failed)

	logging.Info("Actions", "check_nodes: %d of %d nodes healthy", len(nodes)-len(failed), len(nodes))
	if check && len(failed) > 0 {
		return nil, fmt.Errorf("%d of %d nodes failed: %s", len(failed), len(nodes), strings.Join(failed, ", "))
	}
	return reports, nil
}
