package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func uploadCmd(conn *connectionFlags) *cobra.Command {
	var (
		wait     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "upload <file.xml>",
		Short: "Upload a position file and print the created job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := conn.client()

			upload, err := c.Upload(ctx, args[0])
			if err != nil {
				return err
			}
			if !wait {
				return printJSON(cmd.OutOrStdout(), upload)
			}

			status, err := c.Wait(ctx, upload.JobID, interval)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), status); err != nil {
				return err
			}
			if status.State != "SUCCESS" {
				return fmt.Errorf("job %s failed: %s", status.JobID, status.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the job finishes")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Polling interval used with --wait")
	return cmd
}
