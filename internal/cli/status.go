package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/restx/internal/daemon"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long: `Show whether a local RESTx server is running and whether the configured
server URL answers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts)
		},
	}
}

func runStatus(cmd *cobra.Command, opts *rootOptions) error {
	cfg, _, err := opts.loadConfig()
	if err != nil {
		return err
	}
	pidFile := daemon.PIDFile(cfg.DataDir)

	pid, err := daemon.ReadPID(pidFile)
	if err != nil || !daemon.ProcessRunning(pid) {
		cmd.Println("Status: stopped")
	} else {
		cmd.Println("Status: running")
		cmd.Printf("PID: %d\n", pid)
		if fileInfo, err := os.Stat(pidFile); err == nil {
			cmd.Printf("Uptime: %s\n", formatDuration(time.Since(fileInfo.ModTime())))
		}
	}

	c, err := opts.newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	defer cancel()

	info, err := c.ServerInfo(ctx)
	if err != nil {
		cmd.Printf("Server: %s (unreachable)\n", c.BaseURL())
		return nil
	}
	cmd.Printf("Server: %s (%v %v)\n", c.BaseURL(), info["name"], info["version"])
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
