package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/qerr"
	"github.com/mwaldstein/qipu/internal/search"
)

func newCompactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Manage compaction digests that summarize groups of notes (spec §4.2)",
	}
	cmd.AddCommand(
		newCompactApplyCmd(), newCompactShowCmd(), newCompactStatusCmd(),
		newCompactReportCmd(), newCompactSuggestCmd(), newCompactGuideCmd(),
	)
	return cmd
}

// newCompactApplyCmd records digest as the compactor of each source by
// adding a "compacts" link from digest to each source note.
func newCompactApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <digest> <source...>",
		Short: "Mark digest as the compaction of one or more source notes",
		Args:  cobra.MinimumNArgs(2),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			digestID, sourceIDs := args[0], args[1:]
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			digest, err := loadNoteByID(cmd.Context(), s, digestID)
			if err != nil {
				return err
			}

			existing := map[string]bool{}
			for _, l := range digest.Links {
				if l.Type == "compacts" {
					existing[l.ID] = true
				}
			}

			added := 0
			for _, src := range sourceIDs {
				if src == digestID {
					return qerr.Usagef("a digest cannot compact itself: %s", digestID)
				}
				if _, err := loadNoteByID(cmd.Context(), s, src); err != nil {
					return err
				}
				if existing[src] {
					continue
				}
				digest.Links = append(digest.Links, note.Link{ID: src, Type: "compacts"})
				existing[src] = true
				added++
			}

			if err := s.Put(digest); err != nil {
				return err
			}
			if format() == "json" {
				return printJSON(cmd, map[string]any{"digest": digestID, "sources_added": added})
			}
			if !flagQuiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s now compacts %d source(s)\n", digestID, len(existing))
			}
			return nil
		}),
	}
}

func newCompactShowCmd() *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the canonical digest and compaction chain for a note",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.DB.BuildSnapshot(cmd.Context(), s.Cfg.LinkTypeCost)
			if err != nil {
				return qerr.Runtime("build snapshot", err)
			}
			canon, err := snap.Canon(args[0])
			if err != nil {
				return qerr.Dataf("resolve canon: %v", err)
			}
			sources := snap.DirectSources(args[0])
			chain := snap.CompactionChain(args[0], depth)

			if format() == "json" {
				return printJSON(cmd, map[string]any{
					"id": args[0], "canon": canon, "direct_sources": sources, "chain": chain,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "canon: %s\n", canon)
			fmt.Fprintf(cmd.OutOrStdout(), "direct sources: %d\n", len(sources))
			for _, id := range sources {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
			}
			if depth > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "chain (depth %d): %v\n", depth, chain)
			}
			return nil
		}),
	}
	cmd.Flags().IntVar(&depth, "compaction-depth", 0, "also print N levels of compacted sources")
	return cmd
}

func newCompactStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize compacted vs. uncompacted note counts",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.DB.BuildSnapshot(cmd.Context(), s.Cfg.LinkTypeCost)
			if err != nil {
				return qerr.Runtime("build snapshot", err)
			}
			compacted, total := 0, len(snap.Nodes)
			for _, n := range snap.Nodes {
				if n.Compactor != "" {
					compacted++
				}
			}
			if format() == "json" {
				return printJSON(cmd, map[string]any{"total": total, "compacted": compacted, "uncompacted": total - compacted})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d notes compacted\n", compacted, total)
			return nil
		}),
	}
	return cmd
}

func newCompactReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "List every digest and how many sources it compacts",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.DB.BuildSnapshot(cmd.Context(), s.Cfg.LinkTypeCost)
			if err != nil {
				return qerr.Runtime("build snapshot", err)
			}
			digests := map[string]int{}
			for id := range snap.Nodes {
				if n := len(snap.DirectSources(id)); n > 0 {
					digests[id] = n
				}
			}
			if format() == "json" {
				return printJSON(cmd, digests)
			}
			ids := make([]string, 0, len(digests))
			for id := range digests {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  compacts %d\n", id, digests[id])
			}
			return nil
		}),
	}
	return cmd
}

// newCompactSuggestCmd surfaces near-duplicate note pairs that a human
// might want to fold into a single digest, using package search's TF-IDF
// cosine similarity. Doctor runs no such near-duplicate check; this
// command is the only place it is reported.
func newCompactSuggestCmd() *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest notes that look similar enough to compact together",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			notes, err := s.LoadAll()
			if err != nil {
				return qerr.Runtime("load notes", err)
			}
			docs := make([]search.Document, len(notes))
			for i, n := range notes {
				docs[i] = search.Document{ID: n.ID, Terms: search.Tokenize(n.Title + " " + n.Summary + " " + n.Body)}
			}
			pairs := search.PairwiseSimilarity(docs, threshold)

			if format() == "json" {
				return printJSON(cmd, pairs)
			}
			if len(pairs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no near-duplicate pairs found")
				return nil
			}
			for _, p := range pairs {
				fmt.Fprintf(cmd.OutOrStdout(), "%.3f  %s  %s\n", p.Score, p.A, p.B)
			}
			return nil
		}),
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0.85, "minimum cosine similarity to report")
	return cmd
}

func newCompactGuideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guide",
		Short: "Print guidance on when and how to compact notes",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), compactGuideText)
			return nil
		}),
	}
}

const compactGuideText = `Compaction folds a group of related notes into one digest note that
summarizes them, without deleting the sources.

1. Write (or pick) a digest note that stands on its own.
2. Run "qipu compact apply <digest> <source...>" to record the digest
   as the compactor of each source.
3. "qipu compact suggest" surfaces near-duplicate notes worth folding.
4. "qipu context --note <id>" and "qipu link tree" resolve through the
   compaction chain automatically unless --no-resolve-compaction
   (context) or --resolve=false (link tree) is set.

A note may have at most one compactor; compacting it twice, or forming
a compaction cycle, is a doctor error, not a silent overwrite.
`
