package main

import (
	"os"

	"github.com/4xmen/memeboard/cmd/memectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
