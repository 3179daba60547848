package main

import (
	"os"

	"github.com/PolymathAlchemist/wcbt/internal/cli"
)

// version is overridden at build time via -ldflags.
var version = "1.0.0"

func main() {
	cli.SetVersion(version)
	os.Exit(cli.Execute())
}
