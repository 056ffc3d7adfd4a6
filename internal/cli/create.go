package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/qerr"
)

type createFlags struct {
	Title    string
	Type     string
	Tags     []string
	Value    int
	HasValue bool
	Verified bool
	Summary  string
	Source   string
	Body     string
}

func bindCreateFlags(cmd *cobra.Command, f *createFlags) {
	cmd.Flags().StringVar(&f.Title, "title", "", "note title (required)")
	cmd.Flags().StringVar(&f.Type, "type", "fleeting", "note type: fleeting, literature, permanent, moc")
	cmd.Flags().StringSliceVar(&f.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().IntVar(&f.Value, "value", -1, "value 0-100 (default: unset, treated as 50)")
	cmd.Flags().BoolVar(&f.Verified, "verified", false, "mark the note verified")
	cmd.Flags().StringVar(&f.Summary, "summary", "", "one-line summary")
	cmd.Flags().StringVar(&f.Source, "source", "", "legacy singular source URL")
	cmd.Flags().StringVar(&f.Body, "body", "", "note body (default: read from stdin)")
}

func buildNote(f *createFlags, body string) (*note.Note, error) {
	if f.Title == "" {
		return nil, qerr.Usage("--title is required")
	}
	t := note.Type(f.Type)
	if !t.Valid() {
		return nil, qerr.Usagef("unknown note type %q", f.Type)
	}
	n := &note.Note{
		Title:    f.Title,
		Type:     t,
		Tags:     f.Tags,
		Verified: f.Verified,
		Summary:  f.Summary,
		Source:   f.Source,
		Body:     body,
	}
	now := time.Now().UTC()
	n.Created, n.Updated = now, now
	if f.Value >= 0 {
		if f.Value > 100 {
			return nil, qerr.Usagef("--value %d out of range [0,100]", f.Value)
		}
		n.Value, n.HasValue = f.Value, true
	}
	return n, nil
}

func readStdinIfEmpty(body string) (string, error) {
	if body != "" {
		return body, nil
	}
	info, err := os.Stdin.Stat()
	if err != nil || (info.Mode()&os.ModeCharDevice) != 0 {
		return "", nil
	}
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func newCreateCmd() *cobra.Command {
	f := &createFlags{}
	cmd := &cobra.Command{
		Use:     "create",
		Aliases: []string{"new"},
		Short:   "Create a new note",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			body, err := readStdinIfEmpty(f.Body)
			if err != nil {
				return err
			}
			n, err := buildNote(f, body)
			if err != nil {
				return err
			}
			if err := s.Create(n); err != nil {
				return err
			}
			return emitCreated(cmd, n)
		}),
	}
	bindCreateFlags(cmd, f)
	return cmd
}

// newCaptureCmd is the fast-path alias for create used from a pipe,
// e.g. `echo "..." | qipu capture --title "..." --tag rust` (spec §8
// scenario 1).
func newCaptureCmd() *cobra.Command {
	f := &createFlags{Type: "fleeting"}
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Quickly capture a fleeting note from stdin",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			body, err := readStdinIfEmpty(f.Body)
			if err != nil {
				return err
			}
			n, err := buildNote(f, strings.TrimRight(body, "\n"))
			if err != nil {
				return err
			}
			if err := s.Create(n); err != nil {
				return err
			}
			return emitCreated(cmd, n)
		}),
	}
	bindCreateFlags(cmd, f)
	return cmd
}

func emitCreated(cmd *cobra.Command, n *note.Note) error {
	if format() == "json" {
		return printJSON(cmd, map[string]any{"status": "ok", "id": n.ID, "path": n.Path})
	}
	if !flagQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", n.ID, n.Title)
	}
	return nil
}
