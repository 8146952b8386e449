//go:build windows

package supervisor

import (
	"os"
	"os/signal"
)

// registerShutdownSignals wires SIGINT only: SIGTERM has no equivalent on
// Windows.
func registerShutdownSignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
