package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwaldstein/qipu/internal/assembler"
	"github.com/mwaldstein/qipu/internal/qerr"
)

func newPrimeCmd() *cobra.Command {
	var maxChars int
	cmd := &cobra.Command{
		Use:   "prime",
		Short: "Print a session-opening orientation bundle for an LLM agent",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if cmd.Flags().Changed("max-chars") && maxChars == 0 {
				return qerr.Usage("--max-chars 0 cannot fit even a header")
			}

			notes, err := s.LoadAll()
			if err != nil {
				return qerr.Runtime("load notes", err)
			}
			out, truncated := assembler.Prime(s.Root, notes, maxChars)

			if format() == "json" {
				return printJSON(cmd, map[string]any{"text": out, "truncated": truncated})
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		}),
	}
	cmd.Flags().IntVar(&maxChars, "max-chars", assembler.DefaultPrimeBudget, "character budget")
	return cmd
}
