package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spf13/cobra"

	"github.com/ca-srg/slackscan/internal/slacksearch"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the search_slack row schema as JSON Schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeSchema(cmd.OutOrStdout())
	},
}

// rowSchema describes one search_slack row. Column order is carried by Required.
func rowSchema() *jsonschema.Schema {
	columns := slacksearch.Schema()

	properties := make(map[string]*jsonschema.Schema, len(columns))
	required := make([]string, 0, len(columns))
	for _, col := range columns {
		properties[col.Name] = columnSchema(col)
		required = append(required, col.Name)
	}

	return &jsonschema.Schema{
		Title:       slacksearch.FunctionName,
		Description: fmt.Sprintf("One Slack search match; at most %d rows per query", slacksearch.MaxResults),
		Type:        "object",
		Properties:  properties,
		Required:    required,
	}
}

func columnSchema(col slacksearch.Column) *jsonschema.Schema {
	s := &jsonschema.Schema{Description: string(col.Type)}
	if col.Type == slacksearch.ColumnTimestamp {
		s.Format = "date-time"
	}
	if col.Nullable {
		s.Types = []string{"string", "null"}
	} else {
		s.Type = "string"
	}
	return s
}

func writeSchema(w io.Writer) error {
	data, err := json.MarshalIndent(rowSchema(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
