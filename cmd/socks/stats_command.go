package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/WeThePeopleBotball/socks"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show daemon session info and per-command counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *socks.Client) error {
				reply, err := client.SendRequest("stats", nil)
				if err != nil {
					return err
				}
				fields := reply.Fields()
				if ctx.JSONMode() {
					return writeJSON(cmd.OutOrStdout(), fields)
				}
				renderStats(cmd.OutOrStdout(), fields)
				return nil
			})
		},
	}
}

func renderStats(out io.Writer, fields map[string]any) {
	colorize := shouldColorize(out)

	fmt.Fprintln(out, sectionHeader("Daemon", colorize))
	fmt.Fprintf(out, "  Session:   %s\n", stringField(fields, "session_id"))
	fmt.Fprintf(out, "  Transport: %s\n", stringField(fields, "transport"))
	fmt.Fprintf(out, "  Workers:   %s\n", numberString(fields["workers"]))
	if secs, ok := intField(fields, "uptime_seconds"); ok {
		fmt.Fprintf(out, "  Uptime:    %s\n", time.Duration(secs)*time.Second)
	}
	journalOn, _ := fields["journal_enabled"].(bool)
	fmt.Fprintf(out, "  Journal:   %s\n", yesNo(journalOn))

	commands, _ := fields["commands"].(map[string]any)
	if len(commands) == 0 {
		return
	}

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]table.Row, 0, len(names))
	for _, name := range names {
		entry, _ := commands[name].(map[string]any)
		rows = append(rows, table.Row{
			name,
			numberString(entry["total"]),
			numberString(entry["failures"]),
			millisString(entry["avg_ms"]),
			stringField(entry, "last_seen"),
		})
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, sectionHeader("Commands", colorize))
	fmt.Fprintln(out, renderTable(table.Row{"Command", "Total", "Failures", "Avg ms", "Last seen"}, rows, 2, 3, 4))
}
