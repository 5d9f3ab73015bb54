// Package cmd contains the CLI commands for taskctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/taskforge/internal/storage"
)

var (
	// Used for flags
	verbose bool
	output  string
)

// defaultDBPath is the default database path, can be overridden via TASKFORGE_DB_PATH env var
var defaultDBPath = "data/taskforge.db"

func init() {
	if envPath := os.Getenv("TASKFORGE_DB_PATH"); envPath != "" {
		defaultDBPath = envPath
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "taskctl",
	Short: "TaskForge - Team task management",
	Long: `taskctl is the administration tool for a TaskForge server.

It operates directly on the server's database file and is intended for
system administrators managing accounts and projects outside of the API.

Examples:
  # List all users
  taskctl user list

  # Create an admin user
  taskctl user create --email admin@example.com --first-name Ada --role admin

  # Reset a user's password
  taskctl user passwd --email admin@example.com

  # List all projects
  taskctl project list`,
	Run: func(cmd *cobra.Command, args []string) {
		// Show help by default
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
}

// GetOutput returns the output format.
func GetOutput() string {
	return output
}

// PrintVerbose prints a message only if verbose mode is enabled.
func PrintVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}

// openDatabase opens the SQLite database.
func openDatabase(path string) (*storage.SQLiteStorage, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database file not found: %s", path)
	}

	store := storage.NewSQLiteStorage(path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return store, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-2] + ".."
}
