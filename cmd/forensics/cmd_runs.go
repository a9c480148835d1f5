package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sawpanic/forensics-shadow/internal/forensics/api"
)

func newRunsCmd() *cobra.Command {
	var (
		domainFlag string
		statusFlag string
		limit      int
		offset     int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past forensics shadow runs for a domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService()
			if err != nil {
				return err
			}
			runs, err := svc.ListForensicsRuns(context.Background(), api.ListForensicsRunsRequest{
				Domain: domainFlag, Status: statusFlag, Limit: limit, Offset: offset,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		},
	}

	cmd.Flags().StringVar(&domainFlag, "domain", "", "domain to list runs for (empty means global history)")
	cmd.Flags().StringVar(&statusFlag, "status", "", "filter by run status (completed|failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")

	return cmd
}
