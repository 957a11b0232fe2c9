//go:build !windows

package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcAttrs puts the editor in its own process group so signals reach
// the helpers it forks.
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalTerminate(p *os.Process) error {
	return signalGroup(p, syscall.SIGTERM)
}

func signalKill(p *os.Process) error {
	return signalGroup(p, syscall.SIGKILL)
}

func sweepGroup(p *os.Process) {
	_ = signalGroup(p, syscall.SIGKILL)
}

func signalGroup(p *os.Process, sig syscall.Signal) error {
	if p == nil {
		return nil
	}
	err := syscall.Kill(-p.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
