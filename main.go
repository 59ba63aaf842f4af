package main

import (
	"os"

	"github.com/toolscout/toolscout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
