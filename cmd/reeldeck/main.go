package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reeldeck/reeldeck/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦═╗┌─┐┌─┐┬  ╔╦╗┌─┐┌─┐┬┌─
  ╠╦╝├┤ ├┤ │   ║║├┤ │  ├┴┐
  ╩╚═└─┘└─┘┴─┘═╩╝└─┘└─┘┴ ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "reeldeck",
		Short: "Session and user-data server for streaming-media browsing",
		Long: `Reeldeck keeps watchlists, likes, custom lists, and preferences in
sync for a streaming-media browsing app.

Sessions start in guest mode on an anonymous device identity and
switch to an authenticated account once the identity provider
confirms sign-in. Features include:

  • Guest and account data kept in separate stores
  • Optimistic sign-in from a cached identity marker
  • Pluggable persistence: memory, postgres, sqlite, s3
  • Real-time snapshots over WebSocket
  • Title search and trending via TMDB`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		initCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

// printBanner prints the reeldeck ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
