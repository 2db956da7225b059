package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cleanupReg string

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove a tender's work directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		acq := newAcquirer()
		dir := acq.WorkDirFor(cleanupReg)
		if err := acq.Cleanup(dir); err != nil {
			return eris.Wrap(err, "cleanup")
		}
		fmt.Fprintln(os.Stdout, "removed", dir)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().StringVar(&cleanupReg, "reg", "", "tender registration number (required)")
	_ = cleanupCmd.MarkFlagRequired("reg")
	rootCmd.AddCommand(cleanupCmd)
}
