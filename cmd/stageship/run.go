package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/stageship/pkg/log"
	"github.com/bft-labs/stageship/pkg/stageship"
)

func (c *cli) runCommand() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deliver pending batches until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.cfg.Once = once
			if err := c.cfg.ValidateDelivery(); err != nil {
				return err
			}
			c.logConfig()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := stageship.New(ctx, c.libraryConfig(),
				stageship.WithLogger(log.NewZerologAdapterWithLogger(c.log)),
				stageship.WithArchiveRetention(stageship.DefaultRetentionConfig()),
			)
			if err != nil {
				return fmt.Errorf("create sender: %w", err)
			}

			if c.cfg.Once {
				res, err := s.RunOnce(ctx)
				if err != nil {
					return err
				}
				c.log.Info().
					Int("delivered", res.Delivered).
					Int("failed", res.Failed).
					Int("skipped", res.Skipped).
					Msg("delivery cycle complete")
				return nil
			}

			if err := s.Start(ctx); err != nil {
				return fmt.Errorf("start sender: %w", err)
			}

			<-ctx.Done()
			c.log.Info().Msg("received signal, stopping...")

			if err := s.Stop(); err != nil {
				return fmt.Errorf("stop sender: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single delivery cycle and exit")
	return cmd
}
