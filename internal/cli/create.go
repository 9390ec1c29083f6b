package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/restx/pkg/client"
)

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		params          []string
		name            string
		description     string
		specialized     bool
		fromSpecialized bool
	)

	cmd := &cobra.Command{
		Use:   "create <component>",
		Short: "Create a resource from a component",
		Long: `Create a resource from a component. Creation parameters are given as
--param name=value and are checked against the component before anything is
sent. With --specialized the result is a specialized component that keeps the
given values as fixed presets.`,
		Example: `  restx create Echo --param msg=hello --name greeter
  restx create Relay --param site_1_uri=http://a.example --specialized --name failover
  restx create failover --from-specialized --param account_name=bob`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var tmpl *client.Template
			if fromSpecialized {
				tmpl, err = c.NewSpecializedTemplate(ctx, args[0])
			} else {
				tmpl, err = c.NewTemplate(ctx, args[0])
			}
			if err != nil {
				return err
			}

			pairs, err := parsePairs(params)
			if err != nil {
				return err
			}
			for _, p := range pairs {
				if err := tmpl.Set(p[0], p[1]); err != nil {
					return err
				}
			}
			if name != "" {
				if err := tmpl.SetSuggestedName(name); err != nil {
					return err
				}
			}
			if description != "" {
				if err := tmpl.SetDescription(description); err != nil {
					return err
				}
			}
			if specialized {
				if err := tmpl.SetSpecialized(true); err != nil {
					return err
				}
			}

			created, err := tmpl.Create(ctx)
			if err != nil {
				return err
			}
			return opts.printValue(cmd.OutOrStdout(), created)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "creation parameter as name=value (repeatable)")
	cmd.Flags().StringVar(&name, "name", "", "suggested resource name")
	cmd.Flags().StringVar(&description, "description", "", "resource description")
	cmd.Flags().BoolVar(&specialized, "specialized", false, "create a specialized component instead of a resource")
	cmd.Flags().BoolVar(&fromSpecialized, "from-specialized", false, "the argument names a specialized component")
	return cmd
}

// parsePairs splits name=value arguments, keeping their order.
func parsePairs(raw []string) ([][2]string, error) {
	pairs := make([][2]string, 0, len(raw))
	for _, r := range raw {
		k, v, ok := strings.Cut(r, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected name=value", r)
		}
		pairs = append(pairs, [2]string{k, v})
	}
	return pairs, nil
}
