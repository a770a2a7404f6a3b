package commands

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// ErrInvalidHeader is returned for a --header value without a colon.
var ErrInvalidHeader = errors.New("header must be NAME:VALUE")

// defaultListColumns are shown when --columns is not given and the items
// carry them.
var defaultListColumns = []string{"id", "name", "full_name", "login", "title", "state"}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	var (
		perPage  int
		maxPages int
		field    string
		columns  []string
		headers  []string
	)

	cmd := &cobra.Command{
		Use:   "list PATH",
		Short: "List a paginated collection",
		Long: `Follow rel="next" links for an API path and print every item.

Collections wrapped in an object, such as search results, are read from the
field named by --field.`,
		Example: `  hubwire list /users/octocat/repos --per-page 100
  hubwire list "/search/repositories?q=hubwire" --field items --max-pages 2`,
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

			var decode hub.PageDecoder[interface{}] = hub.DecodeJSONItems[interface{}]
			if field != "" {
				decode = hub.DecodeJSONField[interface{}](field)
			}

			items, err := hub.Paginate(client, req, decode,
				hub.WithPageSize(perPage),
				hub.WithMaxPages(maxPages),
			).All(ctx)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", args[0], err)
			}

			return writeOutput(cmd.OutOrStdout(), items, itemsTable(items, columns))
		},
	}

	cmd.Flags().IntVar(&perPage, "per-page", 0, "items per page (server default when 0, at most 100)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages (0 for all)")
	cmd.Flags().StringVar(&field, "field", "", "object field holding the items")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "item fields shown in table output")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "additional request header as NAME:VALUE")

	return cmd
}

// withHeaderFlags applies NAME:VALUE header flags to req.
func withHeaderFlags(req *hub.Request, headers []string) (*hub.Request, error) {
	for _, header := range headers {
		name, value, ok := strings.Cut(header, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHeader, header)
		}

		req = req.WithAddedHeader(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	return req, nil
}

// itemsTable renders one row per item. Without explicit columns the default
// columns present in the first object are used, falling back to all of its
// keys.
func itemsTable(items []interface{}, columns []string) func(*tablewriter.Table) error {
	return func(table *tablewriter.Table) error {
		if len(columns) == 0 {
			columns = inferColumns(items)
		}

		if len(columns) == 0 {
			table.Header("Value")

			for _, item := range items {
				if err := table.Append([]string{formatCell(item)}); err != nil {
					return fmt.Errorf("failed to append row: %w", err)
				}
			}

			return nil
		}

		header := make([]interface{}, len(columns))
		for i, column := range columns {
			header[i] = strings.ToUpper(column)
		}

		table.Header(header...)

		for _, item := range items {
			object, _ := item.(map[string]interface{})

			row := make([]string, len(columns))
			for i, column := range columns {
				row[i] = formatCell(object[column])
			}

			if err := table.Append(row); err != nil {
				return fmt.Errorf("failed to append row: %w", err)
			}
		}

		return nil
	}
}

func inferColumns(items []interface{}) []string {
	if len(items) == 0 {
		return nil
	}

	first, ok := items[0].(map[string]interface{})
	if !ok {
		return nil
	}

	var columns []string

	for _, column := range defaultListColumns {
		if _, present := first[column]; present {
			columns = append(columns, column)
		}
	}

	if len(columns) > 0 {
		return columns
	}

	for key := range first {
		columns = append(columns, key)
	}

	sort.Strings(columns)

	return columns
}
