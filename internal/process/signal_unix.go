//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// terminateGracefully signals the child's whole process group with
// SIGTERM, matching configureSysProcAttr's Setpgid.
func terminateGracefully(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

// killHard signals the child's whole process group with SIGKILL.
func killHard(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
