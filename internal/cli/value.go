package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mwaldstein/qipu/internal/qerr"
)

func newValueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "value",
		Short: "Get or set a note's value (0-100, governs traversal cost and filtering)",
	}
	cmd.AddCommand(newValueSetCmd(), newValueShowCmd())
	return cmd
}

func newValueSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <id> <k>",
		Short: "Set a note's value",
		// Interspersed flag parsing is turned off below, so a leading-hyphen
		// numeric positional (e.g. "-5") is taken as the value, not as a
		// flag, and is then rejected by the range check as a usage error.
		Args: cobra.ExactArgs(2),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			k, err := strconv.Atoi(args[1])
			if err != nil {
				return qerr.Usagef("value must be an integer: %v", err)
			}
			if k < 0 || k > 100 {
				return qerr.Usagef("value %d out of range [0,100]", k)
			}

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := loadNoteByID(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			n.Value, n.HasValue = k, true
			if err := s.Put(n); err != nil {
				return err
			}
			if format() == "json" {
				return printJSON(cmd, map[string]any{"id": n.ID, "value": k})
			}
			if !flagQuiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s value: %d\n", n.ID, k)
			}
			return nil
		}),
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newValueShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a note's effective value",
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
			if format() == "json" {
				return printJSON(cmd, map[string]any{"id": n.ID, "value": n.EffectiveValue(), "explicit": n.HasValue})
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.EffectiveValue())
			return nil
		}),
	}
}
