//go:build windows

package process

import "os/exec"

// configureSysProcAttr is a no-op on Windows: process groups are modeled
// differently there and terminateGracefully/killHard use TerminateProcess
// directly on the child PID instead.
func configureSysProcAttr(cmd *exec.Cmd) {}
