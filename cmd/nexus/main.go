// Command nexus is the administrative CLI for the Nexus memory engine.
package main

import (
	"os"

	"github.com/openclaw/nexus/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
