package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var (
		socketFlag string
		udpFlag    string
		tcpFlag    string
		configFlag string
		jsonFlag   bool
	)

	ctx := newCommandContext(&socketFlag, &udpFlag, &tcpFlag, &configFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "socks",
		Short:         "Talk to a running socksd",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&socketFlag, "socket", "", "Unix socket path of the daemon")
	flags.StringVar(&udpFlag, "udp", "", "UDP address of the daemon (host:port)")
	flags.StringVar(&tcpFlag, "tcp", "", "TCP address of the daemon (host:port)")
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	flags.BoolVar(&jsonFlag, "json", false, "Emit JSON instead of human-readable output")

	rootCmd.AddCommand(newPingCommand(ctx))
	rootCmd.AddCommand(newCallCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newJournalCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
