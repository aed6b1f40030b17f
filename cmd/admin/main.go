// Command admin manages Quill accounts and the database schema.
package main

import (
	"context"
	"fmt"
	"os"

	"quill/internal/config"
	"quill/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "admin [command]",
	Short:         "Quill administration: accounts and schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// env is what a subcommand needs to run.
type env struct {
	cfg *config.Config
	db  *gorm.DB
}

// connect loads configuration and opens the database. Schema changes are
// left to the migrate command.
func connect() (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &env{cfg: cfg, db: db}, nil
}
