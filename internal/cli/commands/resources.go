package commands

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kwai-club/kwai/internal/api"
	"github.com/kwai-club/kwai/internal/cli/ui"
	"github.com/kwai-club/kwai/pkg/jsonapi"
)

func newResourcesCommand(opts *globalOptions) *cobra.Command {
	var schemaType string

	cmd := &cobra.Command{
		Use:   "resources",
		Short: "List the registered resource types",
		Long: `List every JSON:API resource type the API serves with its attributes and
relationships. Relationships are shown as name: target, where [target] is a
list and a trailing ? marks a relationship that may be null.

With --schema, print the JSON Schema of the document of one type instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResources(cmd, opts, schemaType)
		},
	}
	cmd.Flags().StringVar(&schemaType, "schema", "", "Print the JSON Schema of the document of this type")

	return cmd
}

func runResources(cmd *cobra.Command, opts *globalOptions, schemaType string) error {
	registry, err := api.NewRegistry()
	if err != nil {
		return err
	}
	shapes := registry.Shapes()

	if schemaType != "" {
		doc, err := shapes.Document(schemaType)
		if err != nil {
			var types []string
			for _, desc := range registry.Descriptors() {
				types = append(types, desc.TypeName())
			}
			cmd.PrintErr(ui.ResourceNotFoundError(schemaType, ui.FindSimilar(schemaType, types), opts.noColor))
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(doc.JSONSchema())
	}

	table := ui.NewTable(cmd.OutOrStdout(), []string{"TYPE", "GO TYPE", "ATTRIBUTES", "RELATIONSHIPS"}, &ui.TableOptions{NoColor: opts.noColor})
	for _, desc := range registry.Descriptors() {
		shape, err := shapes.Resource(desc.TypeName())
		if err != nil {
			return err
		}
		attributes := make([]string, 0, len(shape.Attributes))
		for _, a := range shape.Attributes {
			attributes = append(attributes, a.Name)
		}
		relationships := make([]string, 0, len(shape.Relationships))
		for _, rel := range shape.Relationships {
			relationships = append(relationships, rel.Name+": "+relationshipTarget(rel))
		}
		table.AddRow(desc.TypeName(), desc.GoType().String(), strings.Join(attributes, ", "), strings.Join(relationships, ", "))
	}
	table.Render()
	return nil
}

func relationshipTarget(rel jsonapi.RelationshipShape) string {
	target := rel.Target.TypeName
	if rel.List {
		target = "[" + target + "]"
	}
	if rel.Optional {
		target += "?"
	}
	return target
}
