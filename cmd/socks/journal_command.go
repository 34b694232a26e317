package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/WeThePeopleBotball/socks"
)

func newJournalCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent requests from the daemon journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return errors.New("--limit must be positive")
			}
			return ctx.withClient(func(client *socks.Client) error {
				reply, err := client.SendRequest("journal", socks.Envelope{"limit": limit})
				if err != nil {
					return err
				}
				entries, _ := reply.Fields()["entries"].([]any)
				if ctx.JSONMode() {
					return writeJSON(cmd.OutOrStdout(), entries)
				}
				renderJournal(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries to fetch")
	return cmd
}

func renderJournal(out io.Writer, entries []any) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Journal is empty")
		return
	}
	colorize := shouldColorize(out)

	rows := make([]table.Row, 0, len(entries))
	for _, raw := range entries {
		entry, _ := raw.(map[string]any)
		received := stringField(entry, "received_at")
		if ts, err := time.Parse(time.RFC3339Nano, received); err == nil {
			received = ts.Local().Format("2006-01-02 15:04:05")
		}
		success, _ := entry["success"].(bool)
		duration := ""
		if ms, ok := intField(entry, "duration_ms"); ok {
			duration = strconv.FormatInt(ms, 10)
		}
		rows = append(rows, table.Row{
			numberString(entry["id"]),
			received,
			stringField(entry, "command"),
			stringField(entry, "client"),
			statusWord(success, colorize),
			duration,
			stringField(entry, "message"),
		})
	}
	fmt.Fprintln(out, renderTable(table.Row{"ID", "Time", "Command", "Client", "Status", "ms", "Message"}, rows, 1, 6))
}
