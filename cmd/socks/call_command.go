package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WeThePeopleBotball/socks"
)

func newCallCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "call <command> [payload]",
		Short: "Send an arbitrary command with an optional JSON object payload",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := socks.Envelope{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
					return fmt.Errorf("parse payload: %w", err)
				}
			}
			return ctx.withClient(func(client *socks.Client) error {
				reply, err := client.SendRequest(args[0], payload)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), reply.Fields())
			})
		},
	}
}
