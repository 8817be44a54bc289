package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bft-labs/stageship/internal/adapters/fs"
	"github.com/bft-labs/stageship/internal/domain"
	"github.com/bft-labs/stageship/internal/spool"
)

type statusReport struct {
	Root     string        `json:"root"`
	Counts   spool.Counts  `json:"counts"`
	Delivery domain.Status `json:"delivery"`
}

func (c *cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print batch counts per state and the last delivery status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := c.openQueue()
			if err != nil {
				return err
			}

			counts, err := queue.Counts()
			if err != nil {
				return err
			}
			delivery, err := fs.NewStatusFileRepository(c.cfg.Root).Load(context.Background())
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(statusReport{
				Root:     c.cfg.Root,
				Counts:   counts,
				Delivery: delivery,
			}, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
