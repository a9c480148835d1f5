package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newPolicyCmd() *cobra.Command {
	var (
		domainFlag string
		stateHash  string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Dump the learned Q-table entries for a domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService()
			if err != nil {
				return err
			}
			entries, err := svc.GetForensicsPolicy(context.Background(), domainFlag, stateHash, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		},
	}

	cmd.Flags().StringVar(&domainFlag, "domain", "", "domain to inspect")
	cmd.Flags().StringVar(&stateHash, "state-hash", "", "filter to a single state hash")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to return")

	return cmd
}
