// Command qipu is a local-first, Markdown-backed knowledge graph for
// humans and LLM agents to read and write notes, links, and context
// bundles from the command line (spec §1).
package main

import (
	"fmt"
	"os"

	"github.com/mwaldstein/qipu/internal/cli"
	"github.com/mwaldstein/qipu/internal/qerr"
)

func main() {
	root := cli.NewRootCmd()
	err := root.Execute()
	if err != nil {
		// RunE errors already got a formatted diagnostic from cli's error
		// wrapper; only cobra's own flag/arg parsing errors (which never
		// reach a RunE) still need to be printed here.
		if _, ok := qerr.As(err); !ok {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
	os.Exit(cli.ExitCodeFor(err))
}
