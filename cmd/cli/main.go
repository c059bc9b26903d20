package main

import (
	"os"

	"github.com/lavacar-app/lavacar/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
