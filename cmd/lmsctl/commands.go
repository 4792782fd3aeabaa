package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/redmonkez12/lms-auth-api/cmd/lmsctl/ui"
	"github.com/redmonkez12/lms-auth-api/internal/auth"
	"github.com/redmonkez12/lms-auth-api/internal/config"
	"github.com/redmonkez12/lms-auth-api/internal/database"
	"github.com/redmonkez12/lms-auth-api/internal/logging"
	"github.com/redmonkez12/lms-auth-api/internal/user"
)

var errAborted = errors.New("aborted")

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}
	migrateCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the applied migration version",
		RunE:  runMigrateStatus,
	}

	migrateCmd.AddCommand(statusCmd)
	return migrateCmd
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired pending signups and clear expired reset codes once",
		RunE:  runSweep,
	}
}

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Session token utilities",
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect [token]",
		Short: "Verify a session token and print its claims",
		Long:  "Verify a session token with the configured strategy and key. Without an argument the token is read from a hidden prompt.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTokenInspect,
	}

	tokenCmd.AddCommand(inspectCmd)
	return tokenCmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	yes, _ := cmd.Flags().GetBool("yes")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sqlDB, err := database.Open(ctx, cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if !yes {
		ok, err := ui.Confirm(
			"Apply migrations?",
			fmt.Sprintf("Database %s on %s:%s", cfg.Database.DBName, cfg.Database.Host, cfg.Database.Port),
		)
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	if err := database.Migrate(ctx, sqlDB); err != nil {
		return err
	}

	version, err := database.MigrationVersion(ctx, sqlDB)
	if err != nil {
		return err
	}

	ui.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Migrations applied, schema at version %d", version))
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	sqlDB, err := database.Open(cmd.Context(), cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	version, err := database.MigrationVersion(cmd.Context(), sqlDB)
	if err != nil {
		return err
	}

	ui.PrintReport(cmd.OutOrStdout(), "Migrations", []ui.Field{
		{Label: "Database", Value: cfg.Database.DBName},
		{Label: "Version", Value: strconv.FormatInt(version, 10)},
	})
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	sqlDB, err := database.Open(cmd.Context(), cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	res, err := sweepOnce(cmd.Context(), sqlDB, logging.NewLogger(cfg.Server.IsDevelopment()))
	if err != nil {
		return err
	}

	ui.PrintReport(cmd.OutOrStdout(), "Sweep", []ui.Field{
		{Label: "Pending signups", Value: strconv.FormatInt(res.PendingSignups, 10)},
		{Label: "Reset codes", Value: strconv.FormatInt(res.ResetOTPs, 10)},
	})
	return nil
}

func sweepOnce(ctx context.Context, sqlDB *sql.DB, logger *logging.Logger) (auth.SweepResult, error) {
	db := database.NewBunDB(sqlDB)
	sweeper := auth.NewSweeper(user.NewRepository(db), auth.NewRepository(db), time.Minute, logger)
	return sweeper.SweepOnce(ctx)
}

func runTokenInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		token, err = ui.PromptSecret("Session token")
		if err != nil {
			return err
		}
	}

	tokens, err := auth.NewTokenService(cfg.Auth.TokenStrategy, []byte(cfg.Auth.PasetoKey), []byte(cfg.Auth.JWTSecret))
	if err != nil {
		return err
	}

	claims, err := tokens.VerifyToken(token)
	if err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}

	ui.PrintReport(cmd.OutOrStdout(), "Session token", claimFields(cfg.Auth.TokenStrategy, claims, time.Now()))
	return nil
}

func claimFields(strategy string, claims *auth.TokenClaims, now time.Time) []ui.Field {
	return []ui.Field{
		{Label: "Strategy", Value: strategy},
		{Label: "User ID", Value: claims.UserID.String()},
		{Label: "Role", Value: string(claims.Role)},
		{Label: "Issued at", Value: claims.IssuedAt.UTC().Format(time.RFC3339)},
		{Label: "Expires at", Value: claims.ExpiresAt.UTC().Format(time.RFC3339)},
		{Label: "Remaining", Value: claims.ExpiresAt.Sub(now).Round(time.Second).String()},
	}
}

func printErr(cmd *cobra.Command, err error) {
	if errors.Is(err, errAborted) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
		return
	}
	ui.PrintError(cmd.ErrOrStderr(), err.Error())
}
