package actions

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"keyrunner/internal/registry"
	"keyrunner/pkg/logging"
)

// Socket states as they appear in /proc/net/{tcp,udp}.
const (
	socketListen    = 0x0A
	socketUnconnect = 0x07
)

func systemPack(_ *Environment) []registry.Descriptor {
	nameParam := param("name", true, "text matched against the process name and command line")
	return []registry.Descriptor{
		{
			Keyword:     "process_exists",
			Category:    CategorySystem,
			Description: "Check that a matching process is running",
			Params:      []registry.ParamSpec{nameParam},
			Handler:     processExists,
		},
		{
			Keyword:     "process_count",
			Category:    CategorySystem,
			Description: "Return the number of matching processes",
			Params:      []registry.ParamSpec{nameParam},
			Handler:     processCount,
		},
		{
			Keyword:     "kill_process",
			Category:    CategorySystem,
			Description: "Signal every matching process and return how many were signaled",
			Params:      []registry.ParamSpec{nameParam, param("signal", false, "signal number or name, default TERM")},
			Handler:     killProcess,
		},
		{
			Keyword:     "cpu_usage",
			Category:    CategorySystem,
			Description: "Return the busy CPU percentage sampled over an interval",
			Params:      []registry.ParamSpec{param("interval", false, "sampling interval, default 1s")},
			Handler:     cpuUsage,
		},
		{
			Keyword:     "memory_usage",
			Category:    CategorySystem,
			Description: "Return the used memory percentage",
			Handler:     memoryUsage,
		},
		{
			Keyword:     "disk_usage",
			Category:    CategorySystem,
			Description: "Return the used percentage of the file system holding path",
			Params:      []registry.ParamSpec{param("path", false, "any path on the file system, default /")},
			Handler:     diskUsage,
		},
		{
			Keyword:     "uptime",
			Category:    CategorySystem,
			Description: "Return the seconds since boot",
			Handler:     uptime,
		},
		{
			Keyword:     "port_listening",
			Category:    CategorySystem,
			Description: "Check that a local socket is bound to a port",
			Params: []registry.ParamSpec{
				param("port", true, "port number"),
				param("protocol", false, "tcp or udp, default tcp"),
			},
			Handler: portListening,
		},
	}
}

// process is the part of a process table entry used for matching.
type process struct {
	pid     int
	comm    string
	cmdline []string
}

// matches reports whether name occurs in the process name or command line,
// the way a grep over ps output would find it.
func (p process) matches(name string) bool {
	if p.comm == name {
		return true
	}
	return strings.Contains(strings.Join(p.cmdline, " "), name)
}

// matchingProcesses returns the processes other than this one that match name.
func matchingProcesses(name string) ([]process, error) {
	procs, err := listProcesses()
	if err != nil {
		return nil, err
	}
	self := os.Getpid()
	var out []process
	for _, p := range procs {
		if p.pid != self && p.matches(name) {
			out = append(out, p)
		}
	}
	return out, nil
}

func processExists(_ context.Context, params map[string]any) (any, error) {
	name, err := requiredString(params, "name")
	if err != nil {
		return nil, err
	}
	procs, err := matchingProcesses(name)
	if err != nil {
		return nil, err
	}
	return len(procs) > 0, nil
}

func processCount(_ context.Context, params map[string]any) (any, error) {
	name, err := requiredString(params, "name")
	if err != nil {
		return nil, err
	}
	procs, err := matchingProcesses(name)
	if err != nil {
		return nil, err
	}
	return len(procs), nil
}

func killProcess(_ context.Context, params map[string]any) (any, error) {
	name, err := requiredString(params, "name")
	if err != nil {
		return nil, err
	}
	sig, err := signalParam(params)
	if err != nil {
		return nil, err
	}
	procs, err := matchingProcesses(name)
	if err != nil {
		return nil, err
	}
	if len(procs) == 0 {
		logging.Info("Actions", "kill_process: no process matches %q", name)
		return false, nil
	}

	killed := 0
	for _, p := range procs {
		if err := signalProcess(p.pid, sig); err != nil {
			logging.Warn("Actions", "kill_process: signal %d to pid %d failed: %v", sig, p.pid, err)
			continue
		}
		killed++
	}
	if killed == 0 {
		return nil, fmt.Errorf("could not signal any of the %d processes matching %q", len(procs), name)
	}
	return killed, nil
}

// signalParam reads "signal" as a number or a name such as TERM or SIGKILL.
func signalParam(params map[string]any) (syscall.Signal, error) {
	raw, ok := params["signal"]
	if !ok || raw == nil {
		return syscall.SIGTERM, nil
	}
	if s, ok := raw.(string); ok {
		s = strings.ToUpper(strings.TrimSpace(s))
		if n, err := strconv.Atoi(s); err == nil {
			return syscall.Signal(n), nil
		}
		if !strings.HasPrefix(s, "SIG") {
			s = "SIG" + s
		}
		sig := signalByName(s)
		if sig == 0 {
			return 0, fmt.Errorf("unknown signal %q", raw)
		}
		return sig, nil
	}
	n, err := intParam(params, "signal", int(syscall.SIGTERM))
	if err != nil {
		return 0, err
	}
	return syscall.Signal(n), nil
}

// cpuTimes holds cumulative CPU seconds from the kernel.
type cpuTimes struct {
	idle  float64
	total float64
}

// busyPercent returns the share of non-idle time between two samples.
func busyPercent(before, after cpuTimes) float64 {
	total := after.total - before.total
	if total <= 0 {
		return 0
	}
	busy := total - (after.idle - before.idle)
	return round2(100 * busy / total)
}

func cpuUsage(ctx context.Context, params map[string]any) (any, error) {
	interval, err := durationParam(params, "interval", time.Second)
	if err != nil {
		return nil, err
	}
	before, err := readCPUTimes()
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(interval):
	}
	after, err := readCPUTimes()
	if err != nil {
		return nil, err
	}
	return busyPercent(before, after), nil
}

// usedPercent returns used/total as a percentage.
func usedPercent(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return round2(100 * float64(used) / float64(total))
}

func memoryUsage(context.Context, map[string]any) (any, error) {
	total, available, err := readMemory()
	if err != nil {
		return nil, err
	}
	return usedPercent(total-available, total), nil
}

func diskUsage(_ context.Context, params map[string]any) (any, error) {
	path, err := stringParam(params, "path", false)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = "/"
	}
	used, avail, err := readDisk(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file system of %s: %w", path, err)
	}
	// Like df, reserved blocks count as neither used nor available.
	return usedPercent(used, used+avail), nil
}

func uptime(context.Context, map[string]any) (any, error) {
	boot, err := readBootTime()
	if err != nil {
		return nil, err
	}
	return time.Since(boot).Seconds(), nil
}

// socket is the part of a kernel socket table entry used by port_listening.
type socket struct {
	port  uint64
	state uint64
}

// bound reports whether any socket is listening on port. For UDP an
// unconnected bound socket counts as listening.
func bound(sockets []socket, port uint64, protocol string) bool {
	want := uint64(socketListen)
	if protocol == "udp" {
		want = socketUnconnect
	}
	for _, s := range sockets {
		if s.port == port && s.state == want {
			return true
		}
	}
	return false
}

func portListening(_ context.Context, params map[string]any) (any, error) {
	port, err := intParam(params, "port", 0)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	protocol, err := stringParam(params, "protocol", false)
	if err != nil {
		return nil, err
	}
	protocol = strings.ToLower(protocol)
	switch protocol {
	case "":
		protocol = "tcp"
	case "tcp", "udp":
	default:
		return nil, fmt.Errorf("unknown protocol %q (want tcp or udp)", protocol)
	}

	sockets, err := readSockets(protocol)
	if err != nil {
		return nil, err
	}
	return bound(sockets, uint64(port), protocol), nil
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
