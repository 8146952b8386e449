//go:build windows

package process

import "os/exec"

// terminateGracefully has no cooperative terminate signal on Windows
// without extra ceremony (GenerateConsoleCtrlEvent is console-group
// scoped); fall through directly to a hard kill, same as the teacher's
// Windows signal path does for its non-SIGTERM platforms.
func terminateGracefully(cmd *exec.Cmd) error {
	return killHard(cmd)
}

func killHard(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
