package cli

import (
	"fmt"

	"github.com/civicwater/waterboard/internal/config"
	"github.com/civicwater/waterboard/internal/storage"
	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/civicwater/waterboard/pkg/schema"
	"github.com/spf13/cobra"
)

func dumpCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "dump [collection]",
		Short: "Print a collection as JSON",
		Long:  "Print a collection as JSON. Without an argument the collection names are listed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := st.open(cmd)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				names, err := store.Collections()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", n, len(store.Load(n)))
				}
				return nil
			}
			if !engine.ValidCollection(args[0]) {
				return fmt.Errorf("invalid collection name: %s", args[0])
			}
			records := store.Load(args[0])
			if records == nil {
				records = []engine.Record{}
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
}

func migrateCmd(st *state) *cobra.Command {
	var to, target string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every collection into another store driver",
		Example: `  waterboard migrate --to sqlite --target ./data/waterboard.db
  waterboard --driver sqlite migrate --to json --target ./export`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. Resolve the destination
			dst := config.StoreConfig{Driver: to}
			switch to {
			case config.StoreSQLite:
				dst.SQLitePath = target
			case config.StoreJSON:
				dst.DataDir = target
			default:
				return fmt.Errorf("invalid --to driver %q, allowed: json, sqlite", to)
			}
			if target == "" {
				return fmt.Errorf("--target is required")
			}
			if to == st.store.Driver && (target == st.store.SQLitePath || target == st.store.DataDir) {
				return fmt.Errorf("source and target are the same store")
			}

			src, err := st.open(cmd)
			if err != nil {
				return err
			}
			out, closer, err := storage.Open(dst)
			if err != nil {
				return fmt.Errorf("open target: %w", err)
			}
			defer closer.Close()

			// 2. Copy known collections first, then anything else the source holds
			names := append([]string(nil), schema.AllCollections...)
			if extra, err := src.Collections(); err == nil {
				names = mergeNames(names, extra)
			}
			n, err := engine.Migrate(src, out, names...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Migrated %d records from %s to %s (%s)\n", check, n, st.store.Driver, to, target)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", config.StoreSQLite, "destination driver (json, sqlite)")
	cmd.Flags().StringVar(&target, "target", "", "destination sqlite file or json directory")
	return cmd
}

func mergeNames(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, n := range base {
		seen[n] = true
	}
	for _, n := range extra {
		if !seen[n] {
			seen[n] = true
			base = append(base, n)
		}
	}
	return base
}
