package main

import (
	"os"

	"github.com/stackwarden/warden/cmd/warden/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
