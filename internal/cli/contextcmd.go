package cli

import (
	gocontext "context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwaldstein/qipu/internal/assembler"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/qerr"
	"github.com/mwaldstein/qipu/internal/search"
	"github.com/mwaldstein/qipu/internal/store"
)

// buildCorpus loads every note and the graph snapshot needed by
// selection/canonicalization (spec §4.4).
func buildCorpus(ctx gocontext.Context, s *store.Store) (assembler.Corpus, error) {
	notes, err := s.LoadAll()
	if err != nil {
		return assembler.Corpus{}, qerr.Runtime("load notes", err)
	}
	byID := make(map[string]*note.Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}
	snap, err := s.DB.BuildSnapshot(ctx, s.Cfg.LinkTypeCost)
	if err != nil {
		return assembler.Corpus{}, qerr.Runtime("build snapshot", err)
	}
	return assembler.Corpus{Notes: byID, Snapshot: snap}, nil
}

func searcherFor(s *store.Store) func(gocontext.Context, search.Query) ([]search.Result, error) {
	return func(ctx gocontext.Context, q search.Query) ([]search.Result, error) {
		return search.Search(ctx, s.DB.DB(), q)
	}
}

func buildSelector(noteIDs []string, tag, moc, query string, minValue int, customFilter []string, resolveCompaction bool) assembler.Selector {
	return assembler.Selector{
		NoteIDs: noteIDs, Tag: tag, MOC: moc, Query: query,
		MinValue: minValue, CustomFilter: customFilter, ResolveCompaction: resolveCompaction,
	}
}

func selectNotes(cmd *cobra.Command, s *store.Store, sel assembler.Selector) ([]*note.Note, error) {
	corpus, err := buildCorpus(cmd.Context(), s)
	if err != nil {
		return nil, err
	}
	ids, err := assembler.Select(cmd.Context(), corpus, sel, searcherFor(s))
	if err != nil {
		return nil, err
	}
	out := make([]*note.Note, 0, len(ids))
	for _, id := range ids {
		out = append(out, corpus.Notes[id])
	}
	return out, nil
}

func newContextCmd() *cobra.Command {
	var (
		noteIDs             []string
		tag, moc, query     string
		minValue            int
		customFilter        []string
		noResolveCompaction bool
		maxChars            int
		withBanner          bool
	)
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Assemble a budget-bounded context bundle for LLM injection (spec §4.4)",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if cmd.Flags().Changed("max-chars") && maxChars == 0 {
				return qerr.Usage("--max-chars 0 cannot fit even a header")
			}

			sel := buildSelector(noteIDs, tag, moc, query, minValue, customFilter, !noResolveCompaction)
			notes, err := selectNotes(cmd, s, sel)
			if err != nil {
				return err
			}

			switch format() {
			case "json":
				out, truncated, err := assembler.JSONBundle(s.Root, notes, maxChars)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				_ = truncated
				return nil
			case "records":
				out, _, err := recordsForNotes(s.Root, notes, nil, maxChars)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			default:
				out, _, err := assembler.Bundle(s.Root, notes, maxChars, withBanner)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			}
		}),
	}
	cmd.Flags().StringSliceVar(&noteIDs, "note", nil, "note id to include (repeatable)")
	cmd.Flags().StringVar(&tag, "tag", "", "include notes with this tag")
	cmd.Flags().StringVar(&moc, "moc", "", "include this MOC and its outgoing-linked notes")
	cmd.Flags().StringVar(&query, "query", "", "include notes matching this search query")
	cmd.Flags().IntVar(&minValue, "min-value", 0, "include notes at or above this value")
	cmd.Flags().StringSliceVar(&customFilter, "custom-filter", nil, "custom-field filter clause (repeatable, AND composed)")
	cmd.Flags().BoolVar(&noResolveCompaction, "no-resolve-compaction", false, "show raw compacted sources instead of resolving them behind their digest")
	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "exact character budget (0 = unlimited)")
	cmd.Flags().BoolVar(&withBanner, "banner", true, "include the safety banner in human/Markdown output")
	return cmd
}
