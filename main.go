package main

import (
	"os"

	"github.com/feaslabs/feasly/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
