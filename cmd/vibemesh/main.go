package main

import (
	"os"

	"github.com/vibemesh/vibemesh/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
