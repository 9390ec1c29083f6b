package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/restx/internal/config"
	"github.com/harun/restx/internal/daemon"
	"github.com/harun/restx/pkg/client"
)

const version = daemon.Version

// rootOptions holds the global flags shared by every command
type rootOptions struct {
	cfgFile  string
	logLevel string
	server   string
	output   string
}

// NewRootCmd builds the restx command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "restx",
		Short: "RESTx - turn components into RESTful resources",
		Long: `RESTx serves components as resources over REST.
Create a resource from a component by supplying its creation parameters,
then call the resource's services with plain HTTP requests.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.restx/restx.json)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", "", "server URL for client commands (default is server.base_url)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "output format (json, yaml)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	rootCmd.AddCommand(
		newServeCmd(opts),
		newStopCmd(opts),
		newStatusCmd(opts),
		newConfigureCmd(opts),
		newComponentsCmd(opts),
		newResourcesCmd(opts),
		newCreateCmd(opts),
		newDeleteCmd(opts),
		newInvokeCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// GetRootCmd returns a fresh root command for testing
func GetRootCmd() *cobra.Command {
	return NewRootCmd()
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// loadConfig loads the config file and applies the global flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, *config.Loader, error) {
	loader := config.NewLoader(o.cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, loader, nil
}

// newClient returns a client for --server or the configured base URL.
func (o *rootOptions) newClient() (*client.Client, error) {
	cfg, _, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	base := o.server
	if base == "" {
		base = cfg.Server.BaseURL
	}

	var opts []client.Option
	if cfg.Client.Timeout > 0 {
		opts = append(opts, client.WithTimeout(time.Duration(cfg.Client.Timeout)*time.Second))
	}

	c, err := client.New(base, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}
