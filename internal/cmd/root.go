package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "episode-tidy",
	Short: "Rename TV episode files using TVDB metadata",
	Long: `episode-tidy renames loosely named episode files into a canonical scheme
derived from TVDB, and deletes release junk with blacklisted extensions.

Filenames are parsed into show/season/episode candidates, resolved against
TVDB with caching and rate control, then renamed collision-safely. Runs are
logged and can be reversed with the undo command.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	instant bool
	dir     string
	workers int
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&instant, "instant", "i", false, "Apply renames immediately without the progress UI")
	rootCmd.PersistentFlags().StringVarP(&dir, "dir", "d", ".", "Directory to process")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Concurrent resolutions (default from config)")
}
