//go:build !windows

package testharness

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// ProcessExited reports whether pid no longer names a running process.
// Zombies waiting to be reaped by init count as exited.
func ProcessExited(pid int) bool {
	err := syscall.Kill(pid, 0)
	if errors.Is(err, syscall.ESRCH) {
		return true
	}
	stat, readErr := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if readErr != nil {
		return false
	}
	// The state field follows the parenthesised command name
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) > 0 && fields[0] == "Z"
}
