package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tasksync-backend/internal/app"
	authdomain "tasksync-backend/internal/auth/domain"
	"tasksync-backend/internal/task/domain"
	"tasksync-backend/pkg/apperr"
	"tasksync-backend/pkg/config"
)

// withApp builds the application for one command and closes it afterwards.
func withApp(cmd *cobra.Command, run func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Build(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()
	return run(ctx, a)
}

func lookup(ctx context.Context, a *app.App, handle string) (*authdomain.Account, error) {
	account, err := a.Auth.ResolveHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%s: %w", handle, apperr.ErrUnknownUser)
	}
	return account, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the SQL tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.Migrate(config.Load())
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}

func registerCmd() *cobra.Command {
	var password, displayName string
	cmd := &cobra.Command{
		Use:   "register <handle>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				account, err := a.Auth.CreateAccount(ctx, args[0], password, displayName)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), account.Profile())
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name (defaults to the handle)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func rolloverCmd() *cobra.Command {
	var today string
	cmd := &cobra.Command{
		Use:   "rollover <handle>",
		Short: "Run the recurrence sweep for one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				account, err := lookup(ctx, a, args[0])
				if err != nil {
					return err
				}
				date := a.Tasks.Today()
				if today != "" {
					if date, err = domain.ParseDate(today); err != nil {
						return err
					}
				}
				report, err := a.Tasks.Rollover(ctx, account.ID, date)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&today, "today", "", "sweep as of this date (YYYY-MM-DD)")
	return cmd
}

func exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <handle>",
		Short: "Write the tasks visible to an account as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				account, err := lookup(ctx, a, args[0])
				if err != nil {
					return err
				}
				data, filename, err := a.Tasks.Export(ctx, account.ID)
				if err != nil {
					return err
				}
				switch output {
				case "-":
					_, err = cmd.OutOrStdout().Write(data)
					return err
				case "":
					output = filename
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", `output file, "-" for stdout (default tasks_<date>.json)`)
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <handle>",
		Short: "Print completion statistics for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				account, err := lookup(ctx, a, args[0])
				if err != nil {
					return err
				}
				stats, err := a.Tasks.Stats(ctx, account.ID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}
