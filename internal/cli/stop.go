package cli

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/restx/internal/daemon"
)

func newStopCmd(opts *rootOptions) *cobra.Command {
	var stopTimeout int

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running RESTx server",
		Long: `Stop the RESTx server gracefully.
Sends SIGTERM to the process named in the PID file and waits for it to shut
down, then falls back to SIGKILL once the timeout passes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return stopDaemon(cmd, daemon.PIDFile(cfg.DataDir), time.Duration(stopTimeout)*time.Second)
		},
	}

	cmd.Flags().IntVar(&stopTimeout, "timeout", 30, "timeout in seconds to wait for the server to stop")
	return cmd
}

func stopDaemon(cmd *cobra.Command, pidFile string, timeout time.Duration) error {
	pid, err := daemon.ReadPID(pidFile)
	if err != nil || !daemon.ProcessRunning(pid) {
		return fmt.Errorf("server is not running (PID file: %s)", pidFile)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !daemon.ProcessRunning(pid) {
			cmd.Println("Server stopped successfully")
			os.Remove(pidFile)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	cmd.Println("Timeout reached, sending SIGKILL...")
	if err := process.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}

	os.Remove(pidFile)
	cmd.Println("Server killed")
	return nil
}
