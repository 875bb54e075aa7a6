// Package command contains the CLI command constructors.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/stolasapp/medstore/internal/config"
	"github.com/stolasapp/medstore/internal/observability"
)

// ErrNoMatch is returned by lookup commands when a user, product or order does
// not exist. It lets the executable exit with a distinct status.
var ErrNoMatch = errors.New("no matching record")

// RootCommand instantiates the root command, with all sub-commands bound.
func RootCommand() *cobra.Command {
	configFilePath := filepath.Join(xdg.ConfigHome, "medstore.yaml")
	cmd := &cobra.Command{
		Use:          "medstore [command] [flags]",
		Short:        "Medical shop users, products and orders",
		Version:      version(),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := loadOrInitConfig(configFilePath)
			if err != nil {
				return fmt.Errorf("failed to load configuration file: %w", err)
			}
			logger := observability.InitSlog(cfg)
			logger.DebugContext(cmd.Context(), "configuration loaded", slog.Any("config", cfg))
			slog.SetDefault(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(
		&configFilePath,
		"config", "c",
		configFilePath,
		"path to the configuration file",
	)

	cmd.AddCommand(
		userCommand(),
		productCommand(),
		orderCommand(),
		dbCommand(),
	)

	return cmd
}

func loadOrInitConfig(configFilePath string) (*config.Config, error) {
	cfg, err := config.Load(configFilePath)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}

	resp, initErr := prompt(fmt.Sprintf("Config not found at %s. Create one? [y|N] ", configFilePath), false)
	if initErr != nil || !bytes.Equal(resp, []byte("y")) {
		return nil, errors.Join(err, initErr)
	}

	cfg = config.Default()
	resp, err = prompt(fmt.Sprintf("Path to the shop database [%s]: ", cfg.DBFilepath), false)
	if err != nil {
		return nil, err
	}
	if path := string(bytes.TrimSpace(resp)); path != "" {
		cfg.DBFilepath = path
	}
	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	const userOnlyDirPerms = 0o700
	if err = os.MkdirAll(filepath.Dir(configFilePath), userOnlyDirPerms); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err = config.Write(configFilePath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
