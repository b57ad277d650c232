package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the drivegallery application
var rootCmd = &cobra.Command{
	Use:   "drivegallery",
	Short: "Caching gallery server in front of a Google Drive folder",
	Long: `drivegallery serves a web gallery backed by a shared Google Drive folder.

It lists the folder's images through a service account, caches listings and
file metadata server-side, and streams image content to browsers with
conditional-request support so Drive is never exposed directly.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "drivegallery version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
