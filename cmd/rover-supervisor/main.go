// Command rover-supervisor runs the onboard-telemetry supervisor core: it
// discovers subsystems under --root, loads boot configuration from
// --config, and blocks until shut down.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	supervisor "github.com/loykin/rover-supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	var root, configPath, metricsListen string

	rootCmd := &cobra.Command{
		Use:   "rover-supervisor",
		Short: "Supervises the rover's onboard subsystems",
		RunE: func(cmd *cobra.Command, args []string) error {
			sup, err := supervisor.New(supervisor.Options{
				SubsystemsRoot: root,
				ConfigPath:     configPath,
				MetricsListen:  metricsListen,
			})
			if err != nil {
				return err
			}
			code := sup.Run()
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&root, "root", "subsystems", "root directory containing one subdirectory per subsystem")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "supervisor.toml", "path to the supervisor config file")
	rootCmd.PersistentFlags().StringVar(&metricsListen, "metrics-listen", "", "address to serve /status and /metrics on, e.g. :9090 (disabled if empty)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
