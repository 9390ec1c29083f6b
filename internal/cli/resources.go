package cli

import (
	"github.com/spf13/cobra"
)

func newResourcesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "resources [name]",
		Aliases: []string{"resource"},
		Short:   "List resources or show one",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				list, err := c.Resources(cmd.Context())
				if err != nil {
					return err
				}
				return opts.printValue(cmd.OutOrStdout(), list)
			}

			res, err := c.Resource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return opts.printValue(cmd.OutOrStdout(), res)
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var specialized bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a resource or specialized component",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			if specialized {
				err = c.DeleteSpecialized(cmd.Context(), args[0])
			} else {
				err = c.DeleteResource(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			cmd.Printf("Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&specialized, "specialized", false, "delete a specialized component")
	return cmd
}
