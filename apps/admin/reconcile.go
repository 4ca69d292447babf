package main

import (
	"time"

	"github.com/spf13/cobra"
)

func (cli *commandLine) reconcileUploadsCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile-uploads",
		Short: "Delete stored submission files that no submission references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := cli.submissions.ReconcileUploads(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			cli.printf("deleted %d orphaned file(s)\n", deleted)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "Only delete files uploaded before this long ago")
	return cmd
}
