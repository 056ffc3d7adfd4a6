package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/qerr"
)

func newCustomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "custom",
		Short: "Get, set, or clear a note's custom fields (spec §9)",
	}
	cmd.AddCommand(newCustomSetCmd(), newCustomGetCmd(), newCustomUnsetCmd(), newCustomShowCmd())
	return cmd
}

// parseCustomLiteral decodes a custom-field value the way frontmatter
// would: YAML/JSON scalars and structures parse as such (numbers,
// bools, leading-hyphen negative numbers included), anything that
// doesn't parse as YAML falls back to a bare string.
func parseCustomLiteral(raw string) note.Value {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return note.StringValue(raw)
	}
	return note.ValueFromNative(v)
}

func newCustomSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <id> <key> <value>",
		Short: "Set a custom field",
		// Interspersed flag parsing is turned off below, so everything after
		// the first positional argument is positional and a leading-hyphen
		// value (e.g. "-100") is taken as the value, not as a flag.
		Args: cobra.ExactArgs(3),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := loadNoteByID(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			if n.Custom == nil {
				n.Custom = map[string]note.Value{}
			}
			n.Custom[args[1]] = parseCustomLiteral(args[2])
			if err := s.Put(n); err != nil {
				return err
			}
			if format() == "json" {
				return printJSON(cmd, map[string]any{"id": n.ID, "key": args[1], "value": n.Custom[args[1]].Native()})
			}
			if !flagQuiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %v\n", n.ID, args[1], n.Custom[args[1]].Native())
			}
			return nil
		}),
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newCustomGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> <key>",
		Short: "Print one custom field",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := loadNoteByID(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			v, ok := n.Custom[args[1]]
			if !ok {
				return qerr.Dataf("no such custom field: %s", args[1])
			}
			if format() == "json" {
				return printJSON(cmd, map[string]any{"id": n.ID, "key": args[1], "value": v.Native()})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v\n", v.Native())
			return nil
		}),
	}
}

func newCustomUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <id> <key>",
		Short: "Remove a custom field",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := loadNoteByID(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			delete(n.Custom, args[1])
			if err := s.Put(n); err != nil {
				return err
			}
			if format() == "json" {
				return printJSON(cmd, map[string]any{"id": n.ID, "key": args[1], "unset": true})
			}
			if !flagQuiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s unset\n", n.ID, args[1])
			}
			return nil
		}),
	}
}

func newCustomShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show all custom fields for a note",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := loadNoteByID(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			native := make(map[string]any, len(n.Custom))
			for k, v := range n.Custom {
				native[k] = v.Native()
			}
			if format() == "json" {
				return printJSON(cmd, native)
			}
			keys := make([]string, 0, len(native))
			for k := range native {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", k, native[k])
			}
			return nil
		}),
	}
}
