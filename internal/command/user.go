package command

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stolasapp/medstore/internal/storage/db"
)

func userCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User commands",
	}
	cmd.AddCommand(
		userLoginCommand(),
		userGetCommand(),
		userCreateCommand(),
	)
	return cmd
}

func userLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login EMAIL",
		Short: "Authenticate a user",
		Long: "Looks up the user with the given email and password and prints the full\n" +
			"row. Passwords may be provided via stdin or through the interactive prompt.\n" +
			"Exits with status 2 when no user matches.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}

			email := args[0]
			logger = logger.With(slog.String("email", email))
			passwd, err := prompt("password: ", true)
			if err != nil {
				return err
			}

			row, found, err := store.AuthenticateUser(cmd.Context(), email, string(passwd))
			if err != nil {
				return err
			} else if !found {
				logger.InfoContext(cmd.Context(), "no matching user")
				return ErrNoMatch
			}
			logger.DebugContext(cmd.Context(), "user authenticated")
			return writeRow(cmd.OutOrStdout(), row)
		},
	}
}

func userGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Look up a user by ID",
		Long:  "Prints the full row of the user with the given user_id. Exits with status 2\nwhen no user matches.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			row, found, err := store.GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			} else if !found {
				logger.InfoContext(cmd.Context(), "no matching user", slog.String("user_id", args[0]))
				return ErrNoMatch
			}
			return writeRow(cmd.OutOrStdout(), row)
		},
	}
}

func userCreateCommand() *cobra.Command {
	var params db.InsertUserParams
	cmd := &cobra.Command{
		Use:   "create EMAIL",
		Short: "Create user",
		Long: "Creates a user entry for the provided email and password, creating and\n" +
			"migrating the database if needed. The password is stored according to the\n" +
			"configured password_scheme. Passwords may be provided via stdin or through\n" +
			"the interactive prompt.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
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

			params.Email = args[0]
			passwd, err := prompt("password: ", true)
			if err != nil {
				return err
			} else if params.Password, err = cfg.PasswordScheme.Prepare(string(passwd)); err != nil {
				return err
			}
			id, err := db.New(handle).InsertUser(cmd.Context(), params)
			if err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "created user",
				slog.String("email", params.Email),
				slog.Int64("user_id", id),
			)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&params.Name, "name", "", "display name")
	flags.StringVar(&params.PhoneNumber, "phone", "", "phone number")
	flags.StringVar(&params.Address, "address", "", "postal address")
	flags.StringVar(&params.PinCode, "pin", "", "postal pin code")
	flags.BoolVar(&params.IsApproved, "approved", false, "mark the account as approved")
	return cmd
}
