//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// configureKill puts the child in its own process group so a timeout also
// kills anything it spawned, such as the tools a conversion script runs.
func configureKill(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
