package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stolasapp/medstore/internal/devdata"
	"github.com/stolasapp/medstore/internal/storage/db"
)

func dbCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database commands",
	}
	cmd.AddCommand(
		dbMigrateCommand(),
		dbSeedCommand(),
	)
	return cmd
}

func dbMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the reference schema",
		Long: "Creates the database file if it does not exist and applies the bundled\n" +
			"Users, Product_table and Orders schema. Lookups never run migrations.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, _, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			handle, err := db.OpenWritable(cmd.Context(), logger, cfg.DBFilepath)
			if err != nil {
				return err
			}
			if err = handle.Close(); err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "database migrated", slog.String("db", cfg.DBFilepath))
			return nil
		},
	}
}

func dbSeedCommand() *cobra.Command {
	var (
		counts devdata.Counts
		seed   uint64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert generated users, products and orders",
		Long: "Inserts fake users and products for development. The generated logins are\n" +
			"printed as YAML so they can be used with `user login`.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			cfg, logger, _, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			handle, err := db.OpenWritable(cmd.Context(), logger, cfg.DBFilepath)
			if err != nil {
				return err
			}
			defer func() {
				if err := handle.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			seed = devdata.Seed(seed)
			gen := devdata.New(seed, cfg.PasswordScheme)
			var creds []devdata.Credential
			err = inTx(cmd.Context(), handle, func(queries *db.Queries) (err error) {
				creds, err = gen.Fill(cmd.Context(), queries, counts)
				return err
			})
			if err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "seeded database",
				slog.Uint64("seed", seed),
				slog.Int("users", counts.Users),
				slog.Int("products", counts.Products),
				slog.Int("orders", counts.Orders),
			)
			if len(creds) == 0 {
				return nil
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			if err = enc.Encode(creds); err != nil {
				return fmt.Errorf("failed to write credentials: %w", err)
			}
			return enc.Close()
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&counts.Users, "users", 10, "number of users to generate")
	flags.IntVar(&counts.Products, "products", 50, "number of products to generate")
	flags.IntVar(&counts.Orders, "orders", 20, "number of orders to generate")
	flags.Uint64Var(&seed, "seed", 0, "generator seed; random when zero")
	return cmd
}

// inTx runs fn in a transaction, committing if it succeeds.
func inTx(ctx context.Context, handle *sql.DB, fn func(*db.Queries) error) error {
	tx, err := handle.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err = fn(db.New(tx)); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}
