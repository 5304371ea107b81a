package main

import (
	"os"

	"github.com/classvr/avncloud/internal/cmd"
)

// Populated by the linker at build time.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
