package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwaldstein/qipu/internal/store"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize a new qipu store",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			s, err := store.Init(dir)
			if err != nil {
				return err
			}
			defer s.Close()

			if format() == "json" {
				return printJSON(cmd, map[string]any{"status": "ok", "root": s.Root})
			}
			if !flagQuiet {
				fmt.Fprintf(cmd.OutOrStdout(), "initialized qipu store at %s\n", s.Root)
			}
			return nil
		}),
	}
}

// newSetupCmd is an alias for init that also seeds the templates/
// directory with a starter note template, for onboarding flows that
// want a ready-to-edit skeleton rather than a bare store.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup [dir]",
		Short: "Initialize a store and seed starter templates",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			s, err := store.Init(dir)
			if err != nil {
				return err
			}
			defer s.Close()

			const starter = "---\ntitle: \ntype: fleeting\n---\n"
			if err := os.WriteFile(s.TemplatesDir()+"/fleeting.md", []byte(starter), 0o644); err != nil {
				return err
			}

			if format() == "json" {
				return printJSON(cmd, map[string]any{"status": "ok", "root": s.Root})
			}
			if !flagQuiet {
				fmt.Fprintf(cmd.OutOrStdout(), "set up qipu store at %s\n", s.Root)
			}
			return nil
		}),
	}
}
