//go:build !linux

package actions

import (
	"fmt"
	"runtime"
	"syscall"
	"time"
)

var errSystemUnsupported = fmt.Errorf("system action words need /proc and are not supported on %s", runtime.GOOS)

func listProcesses() ([]process, error) { return nil, errSystemUnsupported }

func signalProcess(int, syscall.Signal) error { return errSystemUnsupported }

func signalByName(string) syscall.Signal { return 0 }

func readCPUTimes() (cpuTimes, error) { return cpuTimes{}, errSystemUnsupported }

func readMemory() (uint64, uint64, error) { return 0, 0, errSystemUnsupported }

func readDisk(string) (uint64, uint64, error) { return 0, 0, errSystemUnsupported }

func readBootTime() (time.Time, error) { return time.Time{}, errSystemUnsupported }

func readSockets(string) ([]socket, error) { return nil, errSystemUnsupported }
