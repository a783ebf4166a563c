package main

import (
	"os"

	"github.com/abramin/xreflens/cmd/xreflens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
