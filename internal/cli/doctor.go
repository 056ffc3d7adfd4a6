package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwaldstein/qipu/internal/doctor"
	"github.com/mwaldstein/qipu/internal/qerr"
)

func newDoctorCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check (and optionally repair) store invariants (spec §4.6)",
		RunE: run(func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := doctor.Run(cmd.Context(), s)
			if err != nil {
				return qerr.Runtime("run doctor", err)
			}

			if fix {
				if err := doctor.Fix(cmd.Context(), s); err != nil {
					return qerr.Runtime("fix invariants", err)
				}
				report, err = doctor.Run(cmd.Context(), s)
				if err != nil {
					return qerr.Runtime("run doctor", err)
				}
			}

			if format() == "json" {
				return printJSON(cmd, report)
			}
			if len(report.Issues) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no issues found")
				return nil
			}
			for _, issue := range report.Issues {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s  %s  %s\n", issue.Severity, issue.Check, issue.NoteID, issue.Message)
			}
			if report.HasErrors() {
				return qerr.Data("doctor found invariant errors")
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "rebuild the index to repair fixable issues")
	return cmd
}

// newVerifyCmd marks a note verified, the write-side counterpart to the
// `verified` data-model field (spec §3).
func newVerifyCmd() *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "verify <id>",
		Short: "Mark a note verified",
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
			n.Verified = !unset
			if err := s.Put(n); err != nil {
				return err
			}
			if format() == "json" {
				return printJSON(cmd, map[string]any{"id": n.ID, "verified": n.Verified})
			}
			if !flagQuiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s verified: %t\n", n.ID, n.Verified)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&unset, "unset", false, "clear verified instead of setting it")
	return cmd
}
