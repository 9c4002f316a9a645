package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/config"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/database"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/regid"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/repository"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/seed"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/service"
)

type eventStore interface {
	service.EventReader
	seed.Upserter
}

type stores struct {
	events        eventStore
	registrations service.RegistrationStore
	close         func()
}

// openStores connects to the configured backend. Postgres expects the schema
// to be applied with `migrate`; SQLite applies it on open.
func openStores(ctx context.Context, cfg config.Database) (*stores, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &stores{
			events:        repository.NewSQLiteEventRepository(db),
			registrations: repository.NewSQLiteRegistrationRepository(db),
			close:         func() { db.Close() },
		}, nil
	default:
		pool, err := database.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		return &stores{
			events:        repository.NewEventRepository(pool),
			registrations: repository.NewRegistrationRepository(pool),
			close:         pool.Close,
		}, nil
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.ParseDatabase()
			if err != nil {
				return err
			}
			if cfg.Driver == "sqlite" {
				db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
				if err != nil {
					return err
				}
				defer db.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "schema applied to %s\n", cfg.SQLitePath)
				return nil
			}

			pool, err := database.NewPool(ctx, cfg)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer pool.Close()
			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied to %s@%s/%s\n", cfg.User, cfg.Host, cfg.Name)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load events and race catalogs from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := seed.LoadFile(file)
			if err != nil {
				return err
			}

			cfg, err := config.ParseDatabase()
			if err != nil {
				return err
			}
			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.close()

			if err := seed.Apply(cmd.Context(), st.events, events); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d events\n", len(events))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "events.yaml", "Event catalog file (YAML)")
	return cmd
}

func genidCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "genid",
		Short: "Print new registration ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			for i := 0; i < count; i++ {
				id, err := regid.Generate()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of ids to print")
	return cmd
}
