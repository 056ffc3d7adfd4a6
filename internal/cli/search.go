package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwaldstein/qipu/internal/qerr"
	"github.com/mwaldstein/qipu/internal/search"
)

func newSearchCmd() *cobra.Command {
	var (
		types               []string
		tag                 string
		excludeMOC          bool
		minValue            int
		limit               int
		noResolveCompaction bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over notes",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			results, err := search.Search(cmd.Context(), s.DB.DB(), search.Query{
				Text: args[0], Types: types, Tag: tag, ExcludeMOC: excludeMOC,
				MinValue: minValue, Limit: limit,
			})
			if err != nil {
				return qerr.Runtime("search", err)
			}

			if !noResolveCompaction {
				snap, err := s.DB.BuildSnapshot(cmd.Context(), s.Cfg.LinkTypeCost)
				if err != nil {
					return qerr.Runtime("build snapshot", err)
				}
				results, err = search.ResolveView(cmd.Context(), s.DB.DB(), snap, results)
				if err != nil {
					return qerr.Runtime("resolve compaction view", err)
				}
			}

			switch format() {
			case "json":
				return printJSON(cmd, results)
			default:
				for _, r := range results {
					via := ""
					if r.Via != "" {
						via = fmt.Sprintf(" via=%s", r.Via)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%.3f  %s  %-10s %s%s\n", r.Score, r.ID, r.Type, r.Title, via)
				}
				return nil
			}
		}),
	}
	cmd.Flags().StringSliceVar(&types, "type", nil, "filter by type (repeatable)")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	cmd.Flags().BoolVar(&excludeMOC, "no-moc", false, "exclude MOC notes")
	cmd.Flags().IntVar(&minValue, "min-value", 0, "minimum effective value")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	cmd.Flags().BoolVar(&noResolveCompaction, "no-resolve-compaction", false, "show raw compacted-source matches instead of resolving them behind their digest")
	return cmd
}
