package main

import (
	"os"

	"github.com/rustyeddy/fillbook/cmd/fillbook/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
