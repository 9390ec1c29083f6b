package cli

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/restx/pkg/client"
)

func newInvokeCmd(opts *rootOptions) *cobra.Command {
	var (
		method      string
		params      []string
		input       string
		contentType string
		accept      string
		showHeaders bool
	)

	cmd := &cobra.Command{
		Use:   "invoke <resource> <service> [positional...]",
		Short: "Call a service of a resource",
		Long: `Call a service of a resource and print the response body.
Extra arguments become positional path segments. --input sends a request
body; prefix it with @ to read a file or pass - to read stdin.`,
		Example: `  restx invoke greeter say
  restx invoke greeter repeat 3 --param sep=, --accept application/json
  restx invoke greeter echo --method POST --input '{"a":1}' --content-type application/json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}

			pairs, err := parsePairs(params)
			if err != nil {
				return err
			}
			query := url.Values{}
			for _, p := range pairs {
				query.Add(p[0], p[1])
			}

			invokeOpts := client.InvokeOptions{
				Method:      method,
				Positional:  args[2:],
				Params:      query,
				ContentType: contentType,
				Accept:      accept,
			}
			if input != "" {
				body, err := readInput(cmd.InOrStdin(), input)
				if err != nil {
					return err
				}
				invokeOpts.Input = body
				if contentType == "" {
					invokeOpts.ContentType = "text/plain"
				}
			}

			resp, err := c.Invoke(cmd.Context(), args[0], args[1], invokeOpts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showHeaders {
				fmt.Fprintf(out, "Status: %d\nContent-Type: %s\n\n", resp.Status, resp.ContentType)
			}
			text := resp.Text()
			if text != "" && !strings.HasSuffix(text, "\n") {
				text += "\n"
			}
			_, err = io.WriteString(out, text)
			return err
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "service parameter as name=value (repeatable)")
	cmd.Flags().StringVarP(&input, "input", "d", "", "request body, @file or - for stdin")
	cmd.Flags().StringVar(&contentType, "content-type", "", "request body media type")
	cmd.Flags().StringVar(&accept, "accept", "", "acceptable response media types")
	cmd.Flags().BoolVarP(&showHeaders, "include", "i", false, "print status and content type before the body")
	return cmd
}

func readInput(stdin io.Reader, input string) ([]byte, error) {
	switch {
	case input == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	case strings.HasPrefix(input, "@"):
		data, err := os.ReadFile(input[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		return data, nil
	}
	return []byte(input), nil
}
