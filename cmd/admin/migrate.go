package main

import (
	"fmt"
	"strconv"

	"quill/internal/database"

	"github.com/spf13/cobra"
)

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateAutoCmd, migrateStatusCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Schema operations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending SQL migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := connect()
		if err != nil {
			return err
		}
		if err := database.RunMigrations(cmd.Context(), e.db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "sql migrations applied")
		return nil
	},
}

var migrateAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Run gorm AutoMigrate for every model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := connect()
		if err != nil {
			return err
		}
		e.cfg.DBSchemaMode = string(database.SchemaModeAuto)
		if err := database.ApplySchema(cmd.Context(), e.db, e.cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "automigrations applied")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show schema mode and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := connect()
		if err != nil {
			return err
		}
		status, err := database.GetSchemaStatus(cmd.Context(), e.db, e.cfg)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d\n",
			status.Mode, status.Env, status.SQL, status.AutoMigrate,
			len(status.Applied), len(status.Pending))
		for _, m := range status.Pending {
			fmt.Fprintf(out, "pending: %06d_%s\n", m.Version, m.Name)
		}
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down <version>",
	Short: "Roll back one SQL migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		e, err := connect()
		if err != nil {
			return err
		}
		if err := database.RollbackMigration(cmd.Context(), e.db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %d\n", version)
		return nil
	},
}
