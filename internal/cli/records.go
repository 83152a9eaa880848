package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ashureev/diffbot/internal/config"
	"github.com/ashureev/diffbot/internal/render"
	"github.com/ashureev/diffbot/internal/store"
	"github.com/spf13/cobra"
)

// RecordsOptions holds flags for the history and clear commands.
type RecordsOptions struct {
	*RootOptions
	UserID int64
	JSON   bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a user's saved calculations",
		Long: `Print a user's saved calculations in the same layout the bot uses.

Example:
  diffbot history --user 123456789
  diffbot history --user 123456789 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.UserID, "user", 0, "user id (required)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print records as JSON")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all of a user's saved calculations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClear(cmd, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.UserID, "user", 0, "user id (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// openStore loads configuration without requiring a bot token and opens the
// record store.
func openStore(opts *RecordsOptions) (*config.Config, *store.SQLiteStore, error) {
	if opts.UserID == 0 {
		return nil, nil, WrapExitError(ExitCommandError, "invalid --user", fmt.Errorf("user id cannot be 0"))
	}
	cfg, err := config.LoadOffline(opts.SettingsPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return cfg, repo, nil
}

func closeStore(repo *store.SQLiteStore) {
	if err := repo.Close(); err != nil {
		slog.Error("Failed to close repository", "error", err)
	}
}

func runHistory(cmd *cobra.Command, opts *RecordsOptions) error {
	cfg, repo, err := openStore(opts)
	if err != nil {
		return err
	}
	defer closeStore(repo)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	records, err := repo.ListByUser(ctx, opts.UserID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list records", err)
	}

	out := cmd.OutOrStdout()
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	_, err = fmt.Fprintln(out, render.New(cfg.Locale).History(records))
	return err
}

func runClear(cmd *cobra.Command, opts *RecordsOptions) error {
	_, repo, err := openStore(opts)
	if err != nil {
		return err
	}
	defer closeStore(repo)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	n, err := repo.DeleteByUser(ctx, opts.UserID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to clear records", err)
	}

	slog.Info("Records cleared", "user_id", opts.UserID, "deleted", n)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records\n", n)
	return err
}
