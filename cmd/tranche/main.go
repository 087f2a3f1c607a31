package main

import (
	"os"

	"tranche/cmd/tranche/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
