//go:build !windows

package boundary

import (
	"os/exec"
	"syscall"
)

func prepareCommand(cmd *exec.Cmd) {
	// own process group so grandchildren are interrupted too
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGINT)
	}
}
