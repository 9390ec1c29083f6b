package cli

import (
	"github.com/spf13/cobra"

	"github.com/harun/restx/pkg/client"
	"github.com/harun/restx/pkg/component"
)

func newComponentsCmd(opts *rootOptions) *cobra.Command {
	var (
		specialized bool
		doc         bool
	)

	cmd := &cobra.Command{
		Use:     "components [name]",
		Aliases: []string{"component"},
		Short:   "List components or show one",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				list, err := listComponents(cmd, c, specialized)
				if err != nil {
					return err
				}
				return opts.printValue(out, list)
			}

			var comp *client.Component
			if specialized {
				comp, err = c.SpecializedComponent(ctx, args[0])
			} else {
				comp, err = c.Component(ctx, args[0])
			}
			if err != nil {
				return err
			}
			if doc {
				cmd.Println(comp.Documentation)
				return nil
			}
			return opts.printValue(out, comp)
		},
	}

	cmd.Flags().BoolVar(&specialized, "specialized", false, "work with specialized components")
	cmd.Flags().BoolVar(&doc, "doc", false, "print only the component documentation")
	return cmd
}

func listComponents(cmd *cobra.Command, c *client.Client, specialized bool) (map[string]component.Summary, error) {
	if specialized {
		return c.Specialized(cmd.Context())
	}
	return c.Components(cmd.Context())
}
