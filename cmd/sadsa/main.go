package main

import (
	"os"

	"github.com/jrsteele09/sadsa-portal/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
