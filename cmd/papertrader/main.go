package main

import (
	"os"

	"github.com/vibetrade/papertrader/internal/cli"
	"github.com/vibetrade/papertrader/internal/display"
)

func main() {
	rootCmd := cli.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		display.Error(err, "papertrader")
		os.Exit(1)
	}
}
