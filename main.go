package main

import (
	"os"

	"github.com/pawprintlabs/pawprint/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
