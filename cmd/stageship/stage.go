package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/stageship/internal/follow"
	"github.com/bft-labs/stageship/internal/spool"
	"github.com/bft-labs/stageship/pkg/log"
)

func (c *cli) stageCommand() *cobra.Command {
	var (
		followPath string
		fromStart  bool
	)

	cmd := &cobra.Command{
		Use:   "stage [record...]",
		Short: "Append records to the active staging batch",
		Long: strings.TrimSpace(`
Append records to the active staging batch. Records are taken from the
arguments, from stdin lines when no arguments are given, or from lines
appended to a file with --follow. Staging never contacts the sink.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			if followPath != "" && len(args) > 0 {
				return fmt.Errorf("records and --follow are mutually exclusive")
			}

			queue, err := c.openQueue()
			if err != nil {
				return err
			}
			w := spool.NewWriter(queue)

			switch {
			case followPath != "":
				return c.follow(w, followPath, fromStart)
			case len(args) > 0:
				for _, r := range args {
					if err := w.Append(r); err != nil {
						return err
					}
				}
				c.log.Debug().Int("records", len(args)).Msg("records staged")
				return nil
			default:
				return c.stageLines(w, cmd.InOrStdin())
			}
		},
	}

	cmd.Flags().StringVar(&followPath, "follow", "", "stage every line appended to this file until interrupted")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "with --follow, also stage lines already in the file")
	return cmd
}

func (c *cli) stageLines(w *spool.Writer, in io.Reader) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64<<10), 16<<20)

	n := 0
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			continue
		}
		if err := w.Append(line); err != nil {
			return err
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	c.log.Debug().Int("records", n).Msg("records staged")
	return nil
}

func (c *cli) follow(w *spool.Writer, path string, fromStart bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := follow.NewTailer(path, fromStart, log.NewZerologAdapterWithLogger(c.log))
	if err != nil {
		return err
	}

	c.log.Info().Str("path", path).Msg("following file")
	return t.Run(ctx, w.Append)
}
