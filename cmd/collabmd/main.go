package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/collabmd/collabmd/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "collabmd",
		Short: "Real-time collaborative markdown sessions",
		Long: `collabmd keeps a shared markdown document per session and relays
edits, cursors and presence between the browsers joined to it.

Running collabmd without a subcommand starts the server.
Configuration comes from COLLABMD_* environment variables and an
optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load if present")

	serve := serveCmd(&envFile)
	cmd.RunE = serve.RunE
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(
		serve,
		configCmd(&envFile),
		versionCmd(),
	)
	return cmd
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
