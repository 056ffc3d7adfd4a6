// Package cli wires the core packages (store, db, graph, search,
// assembler, doctor, pack, workspace) into the qipu command tree (spec
// §6): global flags, store discovery, output formatting, and exit-code
// translation.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mwaldstein/qipu/internal/config"
	"github.com/mwaldstein/qipu/internal/qerr"
	"github.com/mwaldstein/qipu/internal/store"
	"github.com/mwaldstein/qipu/internal/telemetry"
)

// onceString is a pflag.Value that rejects being set more than once, for
// --format (spec §6: "at most once; repeated ⇒ exit 2").
type onceString struct {
	value string
	isSet bool
}

func newOnceString(def string) *onceString { return &onceString{value: def} }

func (o *onceString) String() string { return o.value }
func (o *onceString) Type() string   { return "string" }
func (o *onceString) Set(v string) error {
	if o.isSet {
		return fmt.Errorf("--format may only be given once")
	}
	switch v {
	case "human", "json", "records":
	default:
		return fmt.Errorf("invalid --format %q: must be human, json, or records", v)
	}
	o.value = v
	o.isSet = true
	return nil
}

var (
	flagRoot      string
	flagStorePath string
	flagFormat    = newOnceString("human")
	flagQuiet     bool
	flagVerbose   bool
	flagLogLevel  = "info"
	flagLogJSON   bool
)

// resolveStoreRoot applies --store/--root/QIPU_STORE_PATH (spec §6's
// store discovery contract) and returns the resulting (projectRoot,
// storeRoot) pair without opening the index, so callers that only need
// config.toml (the logging setup in PersistentPreRunE) don't pay for a
// database connection just to read a handful of fields.
func resolveStoreRoot() (projectRoot, root string, err error) {
	storePath := flagStorePath
	if storePath == "" {
		storePath = os.Getenv("QIPU_STORE_PATH")
	}
	if storePath != "" {
		abs, err := filepath.Abs(storePath)
		if err != nil {
			return "", "", qerr.Usagef("resolve --store path: %v", err)
		}
		return filepath.Dir(abs), abs, nil
	}

	start := flagRoot
	if start == "" {
		start = "."
	}
	projectRoot, err = store.Discover(start)
	if err != nil {
		return "", "", err
	}
	return projectRoot, filepath.Join(projectRoot, store.DirName), nil
}

// openStore resolves --store/--root/QIPU_STORE_PATH and opens the
// resulting store.
func openStore() (*store.Store, error) {
	projectRoot, root, err := resolveStoreRoot()
	if err != nil {
		return nil, err
	}
	return store.OpenAt(projectRoot, root)
}

// format returns the effective --format value.
func format() string { return flagFormat.String() }

// logLevel resolves the effective log level: --log-level wins, then
// QIPU_LOG, then the store's config.toml, then "info".
func logLevel(cfgLevel string) string {
	if flagLogLevel != "info" {
		return flagLogLevel
	}
	if v := os.Getenv("QIPU_LOG"); v != "" {
		return v
	}
	if cfgLevel != "" {
		return cfgLevel
	}
	return "info"
}

// withLogger attaches a telemetry logger built from the resolved level
// and --log-json to ctx.
func withLogger(ctx context.Context, level string, jsonMode bool) context.Context {
	log, err := telemetry.New(level, jsonMode)
	if err != nil {
		log = telemetry.Nop()
	}
	return telemetry.WithLogger(ctx, log)
}

// NewRootCmd builds the full qipu command tree. Each call resets the
// persistent-flag-backed package state, so callers (notably tests) that
// build a fresh command tree per invocation never see a flag value or
// onceString lockout bleed over from a previous call.
func NewRootCmd() *cobra.Command {
	flagRoot, flagStorePath = "", ""
	flagFormat = newOnceString("human")
	flagQuiet, flagVerbose = false, false
	flagLogLevel, flagLogJSON = "info", false

	root := &cobra.Command{
		Use:           "qipu",
		Short:         "A local-first knowledge-graph engine for humans and LLM agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagRoot, "root", "", "directory to start store discovery from (default: cwd)")
	root.PersistentFlags().StringVar(&flagStorePath, "store", "", "explicit store directory, bypassing discovery")
	root.PersistentFlags().Var(flagFormat, "format", "output format: human, json, records")
	root.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress non-essential output")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit logs as JSON")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfgLevel, cfgJSON := "", false
		if _, storeRoot, err := resolveStoreRoot(); err == nil {
			if cfg, err := config.LoadWithEnv(storeRoot, os.Getenv); err == nil {
				cfgLevel, cfgJSON = cfg.Logging.Level, cfg.Logging.JSON
			}
		}
		cmd.SetContext(withLogger(cmd.Context(), logLevel(cfgLevel), flagLogJSON || cfgJSON))
		return nil
	}

	root.AddCommand(
		newInitCmd(),
		newSetupCmd(),
		newCreateCmd(),
		newCaptureCmd(),
		newListCmd(),
		newInboxCmd(),
		newShowCmd(),
		newSearchCmd(),
		newLinkCmd(),
		newContextCmd(),
		newPrimeCmd(),
		newExportCmd(),
		newDumpCmd(),
		newLoadCmd(),
		newIndexCmd(),
		newSyncCmd(),
		newDoctorCmd(),
		newVerifyCmd(),
		newValueCmd(),
		newCustomCmd(),
		newCompactCmd(),
		newWorkspaceCmd(),
	)
	return root
}

// run wraps a command handler so every error is emitted in the active
// --format before being returned to cobra for exit-code translation
// (main.go maps the returned error's qerr.Kind to a process exit code).
func run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			if _, ok := qerr.As(err); !ok {
				err = qerr.Runtime(cmd.Name(), err)
			}
			emitError(cmd, err)
			return err
		}
		return nil
	}
}
