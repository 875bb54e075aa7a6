package command

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/stolasapp/medstore/internal/storage/db"
)

func orderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Order commands",
	}
	cmd.AddCommand(
		orderCreateCommand(),
		orderGetCommand(),
		orderListCommand(),
		orderApprovalCommand(true),
		orderApprovalCommand(false),
	)
	return cmd
}

func orderCreateCommand() *cobra.Command {
	var params db.CreateOrderParams
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Place an order",
		Long: "Places an unapproved order for a user and product, priced from the product's\n" +
			"current price, and prints the new row. Exits with status 2 when the user or\n" +
			"product does not exist.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			if params.Quantity <= 0 {
				return fmt.Errorf("quantity must be positive, got %d", params.Quantity)
			}
			if params.OrderDate != "" {
				if _, err := time.Parse(time.DateOnly, params.OrderDate); err != nil {
					return fmt.Errorf("invalid order date: %w", err)
				}
			}

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

			queries := db.New(handle)
			id, err := queries.CreateOrder(cmd.Context(), params)
			if errors.Is(err, sql.ErrNoRows) {
				logger.InfoContext(cmd.Context(), "no matching user or product",
					slog.Int64("user_id", params.UserID),
					slog.Int64("product_id", params.ProductID),
				)
				return ErrNoMatch
			} else if err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "created order", slog.Int64("order_id", id))

			row, err := queries.GetOrder(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeRow(cmd.OutOrStdout(), row)
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&params.UserID, "user", 0, "ordering user_id")
	flags.Int64Var(&params.ProductID, "product", 0, "ordered product_id")
	flags.Int64Var(&params.Quantity, "quantity", 1, "number of units")
	flags.StringVar(&params.OrderDate, "date", "", "order date as YYYY-MM-DD; today when empty")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func orderGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Look up an order",
		Long:  "Prints the full row of the order with the given order_id. Exits with status 2\nwhen no order matches.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			row, found, err := store.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			} else if !found {
				logger.InfoContext(cmd.Context(), "no matching order", slog.String("order_id", args[0]))
				return ErrNoMatch
			}
			return writeRow(cmd.OutOrStdout(), row)
		},
	}
}

func orderListCommand() *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		Long:  "Prints every order ordered by order_id, optionally only those of one user.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := store.ListOrders(cmd.Context(), userID)
			if err != nil {
				return err
			}
			logger.DebugContext(cmd.Context(), "listed orders", slog.Int("count", len(rows)))
			return writeRows(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "only list orders of this user_id")
	return cmd
}

func orderApprovalCommand(approve bool) *cobra.Command {
	use, short, done := "reject ID", "Reject an order", "order rejected"
	long := "Marks an order as not approved. Rejecting an approved order returns its\n" +
		"quantity to the product's stock."
	if approve {
		use, short, done = "approve ID", "Approve an order", "order approved"
		long = "Marks an order as approved and takes its quantity out of the product's stock.\n" +
			"Approving an approved order changes nothing."
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long + "\nExits with status 2 when no order matches.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			orderID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q: %w", args[0], err)
			}

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

			logger = logger.With(slog.Int64("order_id", orderID))
			var changed bool
			err = inTx(cmd.Context(), handle, func(queries *db.Queries) (err error) {
				changed, err = queries.SetOrderApproval(cmd.Context(), orderID, approve)
				return err
			})
			if errors.Is(err, sql.ErrNoRows) {
				logger.InfoContext(cmd.Context(), "no matching order")
				return ErrNoMatch
			} else if err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), done, slog.Bool("changed", changed))
			return nil
		},
	}
}
