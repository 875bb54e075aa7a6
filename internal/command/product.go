package command

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stolasapp/medstore/internal/storage/db"
)

// maxConcurrentLookups caps how many product lookups, and so connections, are
// in flight at once.
const maxConcurrentLookups = 4

func productCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Product commands",
	}
	cmd.AddCommand(
		productGetCommand(),
		productListCommand(),
	)
	return cmd
}

func productGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID...",
		Short: "Look up products",
		Long: "Prints the full row of each product ID. Every ID is looked up on its own\n" +
			"connection. Exits with status 2 when any ID does not match.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([]db.Row, len(args))
			found := make([]bool, len(args))
			grp, ctx := errgroup.WithContext(cmd.Context())
			grp.SetLimit(maxConcurrentLookups)
			for i, id := range args {
				grp.Go(func() (err error) {
					rows[i], found[i], err = store.AuthenticateOrder(ctx, id)
					if err != nil {
						return fmt.Errorf("product %s: %w", id, err)
					}
					return nil
				})
			}
			if err = grp.Wait(); err != nil {
				return err
			}

			matched := make([]db.Row, 0, len(rows))
			for i, id := range args {
				if found[i] {
					matched = append(matched, rows[i])
					continue
				}
				logger.InfoContext(cmd.Context(), "no matching product", slog.String("product_id", id))
			}
			if err = writeRows(cmd.OutOrStdout(), matched); err != nil {
				return err
			}
			if len(matched) < len(args) {
				return ErrNoMatch
			}
			return nil
		},
	}
}

func productListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List products",
		Long:  "Prints every product ordered by product_id.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := store.ListProducts(cmd.Context())
			if err != nil {
				return err
			}
			logger.DebugContext(cmd.Context(), "listed products", slog.Int("count", len(rows)))
			return writeRows(cmd.OutOrStdout(), rows)
		},
	}
}
