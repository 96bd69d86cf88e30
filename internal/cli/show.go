package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/recordkeeper/internal/schema"
	"github.com/mesh-intelligence/recordkeeper/internal/store"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <system> <kind> [key]",
		Short: "Print records as JSON",
		Long: "Print every record of a kind, or with a key the expanded view of one record,\n" +
			"as indented JSON. Nothing is written; a system with no document shows no records.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := schema.Load(args[0])
			if err != nil {
				return err
			}
			if _, err := sch.Kind(args[1]); err != nil {
				return err
			}
			s, err := a.openStore(cmd.Context(), sch, store.ReadOnly())
			if err != nil {
				return err
			}
			defer s.Close()

			var v any
			if len(args) == 3 {
				v, err = s.Info(args[1], args[2])
			} else {
				v, err = s.List(args[1])
			}
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(v, "", "    ")
			if err != nil {
				return fmt.Errorf("marshal JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
