package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwaldstein/qipu/internal/qerr"
)

// errorEnvelope is the `--format json` error shape (spec §7).
type errorEnvelope struct {
	Status  string         `json:"status"`
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// emitError prints err to the appropriate stream in the active format.
// Human output gets a one-line diagnostic plus a hint for data errors
// (spec §7: "run qipu doctor for invariant failures").
func emitError(cmd *cobra.Command, err error) {
	kind := qerr.KindRuntime
	msg := err.Error()
	var fields map[string]any
	if qe, ok := qerr.As(err); ok {
		kind = qe.Kind
		msg = qe.Message
		if qe.Cause != nil {
			msg = fmt.Sprintf("%s: %v", qe.Message, qe.Cause)
		}
		fields = qe.Fields
	}

	if format() == "json" {
		env := errorEnvelope{Status: "error", Kind: string(kind), Message: msg, Details: fields}
		b, _ := json.Marshal(env)
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", msg)
	if kind == qerr.KindData {
		fmt.Fprintln(cmd.ErrOrStderr(), "hint: run `qipu doctor` to check store invariants")
	}
}

// printJSON marshals v and writes it followed by a newline.
func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return qerr.Runtime("marshal json output", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

// ExitCodeFor maps an error returned from root.Execute() to a process
// exit code (spec §6: 0/1/2/3/130). run wraps every handler error that
// is not a *qerr.Error as a runtime error, so an error without one came
// from cobra's own flag/arg validation and is treated as a usage error.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if qe, ok := qerr.As(err); ok {
		return qe.Kind.ExitCode()
	}
	return qerr.KindUsage.ExitCode()
}
