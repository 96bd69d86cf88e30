package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/recordkeeper/internal/schema"
	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

func newSchemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas [system]",
		Short: "List the built-in systems or describe one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, name := range schema.Names() {
					sch, err := schema.Load(name)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%-10s %s\n", name, sch.Title)
				}
				return nil
			}
			sch, err := schema.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s (%s)\n", sch.Title, sch.Document)
			for _, k := range sch.Kinds {
				fmt.Fprintf(out, "\n%s: %s, key %s (%s)\n", k.Name, k.Role, k.Key, k.KeyMode)
				for _, f := range k.Fields {
					fmt.Fprintf(out, "  %s\n", describeField(f))
				}
			}
			return nil
		},
	}
}

func describeField(f types.Field) string {
	parts := []string{f.Name, string(f.Type)}
	if f.Ref != "" {
		parts = append(parts, "-> "+f.Ref)
	}
	if f.Optional {
		parts = append(parts, "optional")
	}
	return strings.Join(parts, " ")
}
