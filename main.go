package main

import (
	"os"

	"github.com/malezjaa/palladin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
