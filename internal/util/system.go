package util

import (
	"os"
	"runtime"
)

// SystemInfo describes the host a search runs on, surfaced in the reporter's
// run-start summary.
type SystemInfo struct {
	Hostname string
	NumCPU   int
	OS       string
	Arch     string
}

// GetSystemInfo collects system information.
func GetSystemInfo() SystemInfo {
	hostname, _ := os.Hostname()
	return SystemInfo{
		Hostname: hostname,
		NumCPU:   runtime.NumCPU(),
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
	}
}

// LogicalCores returns the number of logical CPU cores available to the
// process. The quality scorer defaults its n_threads option to this value.
func LogicalCores() int {
	return runtime.NumCPU()
}
