package actions

import (
	"fmt"
	"syscall"
	"time"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

func procFS() (procfs.FS, error) {
	fs, err := procfs.NewFS(procfs.DefaultMountPoint)
	if err != nil {
		return procfs.FS{}, fmt.Errorf("failed to open %s: %w", procfs.DefaultMountPoint, err)
	}
	return fs, nil
}

func listProcesses() ([]process, error) {
	fs, err := procFS()
	if err != nil {
		return nil, err
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	out := make([]process, 0, len(procs))
	for _, p := range procs {
		// Processes may exit between listing and reading.
		comm, err := p.Comm()
		if err != nil {
			continue
		}
		cmdline, _ := p.CmdLine()
		out = append(out, process{pid: p.PID, comm: comm, cmdline: cmdline})
	}
	return out, nil
}

func signalProcess(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}

func signalByName(name string) syscall.Signal {
	return unix.SignalNum(name)
}

func readCPUTimes() (cpuTimes, error) {
	fs, err := procFS()
	if err != nil {
		return cpuTimes{}, err
	}
	stat, err := fs.Stat()
	if err != nil {
		return cpuTimes{}, fmt.Errorf("failed to read CPU statistics: %w", err)
	}
	c := stat.CPUTotal
	idle := c.Idle + c.Iowait
	total := idle + c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal
	return cpuTimes{idle: idle, total: total}, nil
}

// readMemory returns total and available memory in kB.
func readMemory() (uint64, uint64, error) {
	fs, err := procFS()
	if err != nil {
		return 0, 0, err
	}
	mem, err := fs.Meminfo()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read memory statistics: %w", err)
	}
	if mem.MemTotal == nil {
		return 0, 0, fmt.Errorf("meminfo has no MemTotal")
	}
	total := *mem.MemTotal
	switch {
	case mem.MemAvailable != nil:
		return total, *mem.MemAvailable, nil
	case mem.MemFree != nil:
		return total, *mem.MemFree, nil
	}
	return 0, 0, fmt.Errorf("meminfo has neither MemAvailable nor MemFree")
}

// readDisk returns used and available bytes of the file system at path.
func readDisk(path string) (uint64, uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	bsize := uint64(st.Bsize)
	return (st.Blocks - st.Bfree) * bsize, st.Bavail * bsize, nil
}

func readBootTime() (time.Time, error) {
	fs, err := procFS()
	if err != nil {
		return time.Time{}, err
	}
	stat, err := fs.Stat()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read boot time: %w", err)
	}
	return time.Unix(int64(stat.BootTime), 0), nil
}

func readSockets(protocol string) ([]socket, error) {
	fs, err := procFS()
	if err != nil {
		return nil, err
	}

	var out []socket
	if protocol == "udp" {
		for _, read := range []func() (procfs.NetUDP, error){fs.NetUDP, fs.NetUDP6} {
			lines, err := read()
			if err != nil {
				// IPv6 may be disabled.
				continue
			}
			for _, l := range lines {
				out = append(out, socket{port: l.LocalPort, state: l.St})
			}
		}
		return out, nil
	}

	for _, read := range []func() (procfs.NetTCP, error){fs.NetTCP, fs.NetTCP6} {
		lines, err := read()
		if err != nil {
			continue
		}
		for _, l := range lines {
			out = append(out, socket{port: l.LocalPort, state: l.St})
		}
	}
	return out, nil
}
