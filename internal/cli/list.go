package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwaldstein/qipu/internal/db"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/qerr"
)

func newListCmd() *cobra.Command {
	var (
		tag        string
		types      []string
		excludeMOC bool
		minValue   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, optionally filtered by tag/type/value",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			rows, err := db.ListNotes(cmd.Context(), s.DB.DB(), db.NoteFilter{
				Types: types, Tag: tag, ExcludeMOC: excludeMOC, MinValue: minValue,
			})
			if err != nil {
				return qerr.Runtime("list notes", err)
			}
			return emitNoteRows(cmd, s.Root, rows)
		}),
	}
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	cmd.Flags().StringSliceVar(&types, "type", nil, "filter by type (repeatable)")
	cmd.Flags().BoolVar(&excludeMOC, "no-moc", false, "exclude MOC notes")
	cmd.Flags().IntVar(&minValue, "min-value", 0, "minimum effective value")
	return cmd
}

// newInboxCmd lists fleeting notes awaiting triage, oldest first: the
// queue an operator works down to promote or discard.
func newInboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inbox",
		Short: "List fleeting notes awaiting triage",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			rows, err := db.ListNotes(cmd.Context(), s.DB.DB(), db.NoteFilter{Types: []string{"fleeting"}})
			if err != nil {
				return qerr.Runtime("list inbox", err)
			}
			return emitNoteRows(cmd, s.Root, rows)
		}),
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one note",
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

			switch format() {
			case "json":
				return printJSON(cmd, noteToJSON(n))
			case "records":
				out, _, err := recordsForNotes(s.Root, []*note.Note{n}, nil, 0)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "# %s (%s)\n", n.Title, n.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "type: %s  value: %d  verified: %t\n", n.Type, n.EffectiveValue(), n.Verified)
				if len(n.Tags) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "tags: %s\n", strings.Join(n.Tags, ", "))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "---")
				fmt.Fprintln(cmd.OutOrStdout(), n.Body)
				return nil
			}
		}),
	}
}

// loadNoteByID loads and parses every note file (s.LoadAll) and returns
// the one with the given ID, so show/link/value/custom all read content
// from the files rather than from the index.
func loadNoteByID(ctx context.Context, s interface {
	LoadAll() ([]*note.Note, error)
}, id string) (*note.Note, error) {
	notes, err := s.LoadAll()
	if err != nil {
		return nil, qerr.Runtime("load notes", err)
	}
	for _, n := range notes {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, qerr.Dataf("no such note: %s", id)
}

func noteToJSON(n *note.Note) map[string]any {
	custom := map[string]any{}
	for k, v := range n.Custom {
		custom[k] = v.Native()
	}
	return map[string]any{
		"id": n.ID, "title": n.Title, "type": string(n.Type),
		"created": n.Created, "updated": n.Updated,
		"value": n.EffectiveValue(), "verified": n.Verified,
		"tags": n.Tags, "summary": n.Summary, "source": n.Source,
		"sources": n.Sources, "path": n.Path, "body": n.Body, "custom": custom,
	}
}

func emitNoteRows(cmd *cobra.Command, storeRoot string, rows []db.IndexedNote) error {
	switch format() {
	case "json":
		out := make([]map[string]any, 0, len(rows))
		for _, r := range rows {
			out = append(out, map[string]any{
				"id": r.ID, "title": r.Title, "type": r.Type,
				"value": r.Value, "verified": r.Verified, "tags": r.Tags,
				"summary": r.Summary, "path": r.Path,
			})
		}
		return printJSON(cmd, out)
	case "records":
		notes := make([]*note.Note, 0, len(rows))
		for _, r := range rows {
			notes = append(notes, &note.Note{ID: r.ID, Title: r.Title, Type: note.Type(r.Type), Tags: r.Tags, Summary: r.Summary, Path: r.Path})
		}
		out, _, err := recordsForNotes(storeRoot, notes, nil, 0)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	default:
		for _, r := range rows {
			tags := ""
			if len(r.Tags) > 0 {
				tags = " [" + strings.Join(r.Tags, ",") + "]"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %s%s\n", r.ID, r.Type, r.Title, tags)
		}
		return nil
	}
}
