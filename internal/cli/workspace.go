package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwaldstein/qipu/internal/workspace"
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage secondary stores embedded under this store (spec §4.5)",
	}
	cmd.AddCommand(newWorkspaceNewCmd(), newWorkspaceListCmd(), newWorkspaceMergeCmd(), newWorkspaceDeleteCmd())
	return cmd
}

func newWorkspaceNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <name>",
		Short: "Create a new workspace",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ws, err := workspace.New(s, args[0])
			if err != nil {
				return err
			}
			defer ws.Close()

			if format() == "json" {
				return printJSON(cmd, map[string]any{"name": args[0], "root": ws.Root})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workspace %q created at %s\n", args[0], ws.Root)
			return nil
		}),
	}
}

func newWorkspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			names, err := workspace.List(s)
			if err != nil {
				return err
			}
			if format() == "json" {
				return printJSON(cmd, names)
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		}),
	}
}

func newWorkspaceMergeCmd() *cobra.Command {
	var strategy string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "merge <name>",
		Short: "Merge a workspace's notes back into this store",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			strat, err := parseStrategy(strategy)
			if err != nil {
				return err
			}

			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := workspace.Merge(cmd.Context(), s, args[0], strat, dryRun)
			if err != nil {
				return err
			}

			if format() == "json" {
				return printJSON(cmd, report)
			}
			if report.DryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "dry run: %d conflict(s)\n", len(report.Conflicts))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "written: %d  skipped: %d  conflicts: %d\n",
					len(report.Written), len(report.Skipped), len(report.Conflicts))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&strategy, "strategy", "skip", "conflict strategy: skip, overwrite, merge-links, rename")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute conflicts without writing")
	return cmd
}

func newWorkspaceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a workspace and all its notes",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := workspace.Delete(s, args[0]); err != nil {
				return err
			}
			if format() == "json" {
				return printJSON(cmd, map[string]any{"name": args[0], "deleted": true})
			}
			if !flagQuiet {
				fmt.Fprintf(cmd.OutOrStdout(), "workspace %q deleted\n", args[0])
			}
			return nil
		}),
	}
}
