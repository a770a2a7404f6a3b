package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/hubwire/internal/constants"
)

// defaultJSONIndent is the indentation of JSON output.
const defaultJSONIndent = "  "

func validOutputFormat(format string) bool {
	switch format {
	case constants.FormatJSON, constants.FormatYAML, constants.FormatTable:
		return true
	default:
		return false
	}
}

// outputFormat returns the selected output format, defaulting to table.
func outputFormat() (string, error) {
	format := viper.GetString("output")
	if format == "" {
		return constants.FormatTable, nil
	}

	if !validOutputFormat(format) {
		return "", fmt.Errorf("%w: %q", constants.ErrInvalidOutputFormat, format)
	}

	return format, nil
}

// writeOutput encodes value as JSON or YAML, or calls renderTable.
func writeOutput(out io.Writer, value interface{}, renderTable func(*tablewriter.Table) error) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	switch format {
	case constants.FormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", defaultJSONIndent)

		return encoder.Encode(value)
	case constants.FormatYAML:
		return yaml.NewEncoder(out).Encode(value)
	default:
		table := tablewriter.NewWriter(out)
		if err := renderTable(table); err != nil {
			return err
		}

		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	}
}

// propertyTable renders the top-level fields of an object as rows.
func propertyTable(object map[string]interface{}) func(*tablewriter.Table) error {
	return func(table *tablewriter.Table) error {
		table.Header("Property", "Value")

		keys := make([]string, 0, len(object))
		for key := range object {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		for _, key := range keys {
			if err := table.Append([]string{key, formatCell(object[key])}); err != nil {
				return fmt.Errorf("failed to append row: %w", err)
			}
		}

		return nil
	}
}

// formatCell renders a JSON value for a table cell; nested values are
// rendered as compact JSON.
func formatCell(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return constants.NotAvailable
	case string:
		return v
	case float64, bool:
		return fmt.Sprint(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(data)
	}
}
