package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/restx/internal/config"
	"github.com/harun/restx/internal/daemon"
	"github.com/harun/restx/internal/logger"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		host    string
		port    int
		storage string
		dbPath  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the RESTx server",
		Long: `Run the RESTx server in the foreground.
The server stops on SIGINT or SIGTERM after in-flight requests finish.
Log level changes in the config file are applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, loader, err := opts.loadConfig()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Server.Host = host
			}
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("storage") {
				cfg.Storage.Driver = storage
			}
			if flags.Changed("db") {
				cfg.Storage.Path = dbPath
			}
			return runServe(cmd, cfg, loader)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	cmd.Flags().StringVar(&storage, "storage", "", "resource storage driver: memory or sqlite")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database file")

	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config, loader *config.Loader) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
		Out:       cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return err
	}
	if err := d.Start(); err != nil {
		return err
	}

	err = loader.Watch(func(next *config.Config, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("Failed to reload config")
			return
		}
		d.Reload(next)
	})
	if err != nil {
		log.Debug().Err(err).Msg("Config file is not watched")
	}

	return d.Wait(cmd.Context())
}
