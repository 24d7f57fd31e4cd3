package cmd

import (
	"fmt"

	"github.com/Digital-Shane/episode-tidy/internal/log"
	"github.com/spf13/cobra"
)

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Reverse the renames from the most recent session",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := log.LatestSession()
		if err != nil {
			return err
		}
		if session == nil {
			return fmt.Errorf("no sessions to undo")
		}

		successful, failed, errs := log.UndoSession(session)
		fmt.Printf("Undid %d operations (%d failed)\n", successful, failed)
		for _, err := range errs {
			fmt.Printf("  %v\n", err)
		}
		if failed > 0 {
			return fmt.Errorf("%d operations could not be undone", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(undoCmd)
}
