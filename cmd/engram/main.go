package main

import (
	"os"

	"github.com/engramlabs/engram-go/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
