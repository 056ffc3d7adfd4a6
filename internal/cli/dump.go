package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwaldstein/qipu/internal/assembler"
	"github.com/mwaldstein/qipu/internal/pack"
	"github.com/mwaldstein/qipu/internal/qerr"
)

func newDumpCmd() *cobra.Command {
	var (
		noteIDs         []string
		tag, moc, query string
		minValue        int
		customFilter    []string
		maxHops         int
		noAttachments   bool
		output          string
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump a selected slice of the store to a pack file (spec §4.5)",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			corpus, err := buildCorpus(cmd.Context(), s)
			if err != nil {
				return err
			}
			sel := buildSelector(noteIDs, tag, moc, query, minValue, customFilter, true)
			p, err := pack.Dump(cmd.Context(), corpus, pack.DumpOptions{
				Selector: sel, MaxHops: maxHops, NoAttachments: noAttachments,
			}, s.AttachmentsDir(), searcherFor(s))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return qerr.Runtime("create pack file", err)
				}
				defer f.Close()
				w = f
			}
			if err := pack.Write(w, p); err != nil {
				return qerr.Runtime("write pack", err)
			}
			return nil
		}),
	}
	cmd.Flags().StringSliceVar(&noteIDs, "note", nil, "note id to include (repeatable)")
	cmd.Flags().StringVar(&tag, "tag", "", "include notes with this tag")
	cmd.Flags().StringVar(&moc, "moc", "", "include this MOC and its outgoing-linked notes")
	cmd.Flags().StringVar(&query, "query", "", "include notes matching this search query")
	cmd.Flags().IntVar(&minValue, "min-value", 0, "include notes at or above this value")
	cmd.Flags().StringSliceVar(&customFilter, "custom-filter", nil, "custom-field filter clause (repeatable)")
	cmd.Flags().IntVar(&maxHops, "max-hops", 0, "expand the selection by this many link hops")
	cmd.Flags().BoolVar(&noAttachments, "no-attachments", false, "omit referenced attachments")
	cmd.Flags().StringVar(&output, "output", "", "write to this path instead of stdout")
	return cmd
}

func newLoadCmd() *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "load <pack-file>",
		Short: "Load a pack file into the store (spec §4.5)",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			strat, err := parseStrategy(strategy)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return qerr.Runtime("open pack file", err)
			}
			defer f.Close()

			p, err := pack.Read(f)
			if err != nil {
				return qerr.Dataf("read pack: %v", err)
			}

			report, err := pack.Load(cmd.Context(), s, p, strat)
			if err != nil {
				return err
			}

			if format() == "json" {
				return printJSON(cmd, report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "written: %d  skipped: %d  conflicts: %d\n",
				len(report.Written), len(report.Skipped), len(report.Conflicts))
			return nil
		}),
	}
	cmd.Flags().StringVar(&strategy, "strategy", "skip", "conflict strategy: skip, overwrite, merge-links, rename")
	return cmd
}

func parseStrategy(s string) (pack.Strategy, error) {
	switch pack.Strategy(s) {
	case pack.StrategySkip, pack.StrategyOverwrite, pack.StrategyMergeLinks, pack.StrategyRename:
		return pack.Strategy(s), nil
	default:
		return "", qerr.Usagef("invalid --strategy %q: must be skip, overwrite, merge-links, or rename", s)
	}
}

func newExportCmd() *cobra.Command {
	var (
		noteIDs         []string
		tag, moc, query string
		minValue        int
		customFilter    []string
		output          string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a selected slice of the store as a Markdown bundle",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			sel := buildSelector(noteIDs, tag, moc, query, minValue, customFilter, true)
			notes, err := selectNotes(cmd, s, sel)
			if err != nil {
				return err
			}

			out, _, err := assembler.Bundle(s.Root, notes, 0, false)
			if err != nil {
				return err
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
					return qerr.Runtime("write export file", err)
				}
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		}),
	}
	cmd.Flags().StringSliceVar(&noteIDs, "note", nil, "note id to include (repeatable)")
	cmd.Flags().StringVar(&tag, "tag", "", "include notes with this tag")
	cmd.Flags().StringVar(&moc, "moc", "", "include this MOC and its outgoing-linked notes")
	cmd.Flags().StringVar(&query, "query", "", "include notes matching this search query")
	cmd.Flags().IntVar(&minValue, "min-value", 0, "include notes at or above this value")
	cmd.Flags().StringSliceVar(&customFilter, "custom-filter", nil, "custom-field filter clause (repeatable)")
	cmd.Flags().StringVar(&output, "output", "", "write to this path instead of stdout")
	return cmd
}
