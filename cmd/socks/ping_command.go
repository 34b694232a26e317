package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/WeThePeopleBotball/socks"
)

func newPingCommand(ctx *commandContext) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the daemon answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return errors.New("--count must be positive")
			}
			return ctx.withClient(func(client *socks.Client) error {
				out := cmd.OutOrStdout()
				for i := 0; i < count; i++ {
					start := time.Now()
					if _, err := client.SendRequest("ping", nil); err != nil {
						return err
					}
					rtt := time.Since(start)
					if ctx.JSONMode() {
						if err := writeJSON(out, map[string]any{"rtt_ms": float64(rtt.Microseconds()) / 1000}); err != nil {
							return err
						}
						continue
					}
					fmt.Fprintf(out, "pong in %s\n", rtt.Round(time.Microsecond))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "Number of pings to send")
	return cmd
}
