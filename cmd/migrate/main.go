package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/config"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/migrations"
)

var dsn string

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded MEMP schema migrations",
	Long: `Applies the SQL migrations compiled into the binary.

DATABASE_URL (or --dsn) selects the database; a .env file in the working
directory or any parent is loaded first.`,
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRunner(func(r *migrations.Runner) error {
			if err := r.Up(); err != nil {
				return err
			}
			return printVersion(cmd, r)
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRunner(func(r *migrations.Runner) error {
			if err := r.Down(); err != nil {
				return err
			}
			return printVersion(cmd, r)
		})
	},
}

var stepsCmd = &cobra.Command{
	Use:   "steps N",
	Short: "Move N migrations forward, or back when N is negative",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n == 0 {
			return fmt.Errorf("steps: N must be a non-zero integer, got %q", args[0])
		}
		return withRunner(func(r *migrations.Runner) error {
			if err := r.Steps(n); err != nil {
				return err
			}
			return printVersion(cmd, r)
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRunner(func(r *migrations.Runner) error { return printVersion(cmd, r) })
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "postgres DSN (default $DATABASE_URL)")
	rootCmd.AddCommand(upCmd, downCmd, stepsCmd, versionCmd)
}

func withRunner(fn func(*migrations.Runner) error) error {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	r, err := migrations.NewRunner(dsn)
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(r)
}

func printVersion(cmd *cobra.Command, r *migrations.Runner) error {
	v, dirty, err := r.Version()
	if err != nil {
		return err
	}
	cmd.Printf("schema version %d (dirty=%t)\n", v, dirty)
	return nil
}

func main() {
	config.LoadDotEnvUp(8)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
