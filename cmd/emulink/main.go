package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	rootCmd := &cobra.Command{
		Use:   "emulink",
		Short: "emulink - emulator connection host",
		Long: `Host side of the emulator query/event channel protocol.

  emulink serve      Accept emulator channels and answer queries
  emulink version    Print the build version`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newVersionCmd(),
	)

	return rootCmd.Execute()
}
