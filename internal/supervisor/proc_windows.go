//go:build windows

package supervisor

import (
	"errors"
	"os"
	"os/exec"
)

func setProcAttrs(cmd *exec.Cmd) {}

// Windows has no polite signal for a console-less child, so both stages
// kill the process.
func signalTerminate(p *os.Process) error {
	return signalKill(p)
}

func signalKill(p *os.Process) error {
	if p == nil {
		return nil
	}
	err := p.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func sweepGroup(p *os.Process) {}
