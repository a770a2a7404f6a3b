package commands

import (
	"fmt"
	"net/http"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	var headers []string

	cmd := &cobra.Command{
		Use:   "get PATH",
		Short: "Fetch a single resource",
		Long:  "Send a GET request for an API path and print the decoded JSON response",
		Example: `  hubwire get /repos/octocat/hello-world
  hubwire get /user --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := createClient(ctx)
			if err != nil {
				return err
			}

			req, err := client.NewRequest(http.MethodGet, args[0], nil)
			if err != nil {
				return fmt.Errorf("failed to build request: %w", err)
			}

			req, err = withHeaderFlags(req, headers)
			if err != nil {
				return err
			}

			result, err := hub.Fetch(ctx, client, req, hub.DecodeJSON[interface{}])
			if err != nil {
				return fmt.Errorf("failed to get %s: %w", args[0], err)
			}

			return writeOutput(cmd.OutOrStdout(), result, func(table *tablewriter.Table) error {
				switch v := result.(type) {
				case map[string]interface{}:
					return propertyTable(v)(table)
				case []interface{}:
					return itemsTable(v, nil)(table)
				default:
					table.Header("Value")

					return table.Append([]string{formatCell(v)})
				}
			})
		},
	}

	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "additional request header as NAME:VALUE")

	return cmd
}
