// Package cli implements the waterboard operator command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/civicwater/waterboard/internal/config"
	"github.com/civicwater/waterboard/internal/storage"
	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	check = color.New(color.FgGreen).Sprint("✓")
	warn  = color.New(color.FgYellow).SprintFunc()
	bad   = color.New(color.FgRed).SprintFunc()
)

// state is shared by every subcommand of one invocation.
type state struct {
	store   config.StoreConfig
	quiet   bool
	backend engine.RecordStore
	closer  io.Closer
}

// NewRootCmd builds the waterboard command tree.
func NewRootCmd(version string) *cobra.Command {
	st := &state{}
	var driver, dataDir, sqlitePath string

	root := &cobra.Command{
		Use:     "waterboard",
		Short:   "Operate a waterboard installation",
		Version: version,
		Long: `waterboard manages the data behind the municipal water-supply site.
Local commands (users, dump, migrate) work on the data directory directly.
Remote commands (notices, complaints) go through WATERBOARD_ADDR when it is set
and otherwise serve the API in-process from the data directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			st.store = cfg.Store
			if cmd.Flags().Changed("driver") {
				st.store.Driver = driver
			}
			if cmd.Flags().Changed("data-dir") {
				st.store.DataDir = dataDir
			}
			if cmd.Flags().Changed("sqlite-path") {
				st.store.SQLitePath = sqlitePath
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if st.closer != nil {
				return st.closer.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&driver, "driver", config.StoreJSON, "record store driver (json, sqlite)")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "directory holding the json collections")
	root.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "./data/waterboard.db", "sqlite database file")
	root.PersistentFlags().BoolVarP(&st.quiet, "quiet", "q", false, "suppress store warnings")

	root.AddCommand(usersCmd(st))
	root.AddCommand(dumpCmd(st))
	root.AddCommand(migrateCmd(st))
	root.AddCommand(noticesCmd(st))
	root.AddCommand(complaintsCmd(st))
	return root
}

// open returns the configured record store, opening it on first use.
func (st *state) open(cmd *cobra.Command) (engine.RecordStore, error) {
	if st.backend != nil {
		return st.backend, nil
	}
	store, closer, err := storage.Open(st.store, engine.WithLogger(st.logger(cmd)))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", st.store.Driver, err)
	}
	st.backend, st.closer = store, closer
	return store, nil
}

// logger reports store and client warnings on stderr unless -q is given.
func (st *state) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if st.quiet {
		level = slog.LevelError + 4
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
