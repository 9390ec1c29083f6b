package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/restx/internal/config"
)

func newConfigureCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Run interactive configuration wizard",
		Long: `Run an interactive configuration wizard to set up RESTx.
The wizard asks for the listen address, the resource storage and the log
level, starting from the current configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd, opts)
		},
	}
}

func runConfigure(cmd *cobra.Command, opts *rootOptions) error {
	current, loader, err := opts.loadConfig()
	if err != nil {
		return err
	}

	wizard := config.NewWizardIO(cmd.InOrStdin(), cmd.OutOrStdout())
	cfg, err := wizard.Run(current)
	if err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	cmd.Printf("\nConfiguration saved to: %s\n", loader.GetConfigPath())
	cmd.Println("\nYou can now start RESTx with: restx serve")
	return nil
}
