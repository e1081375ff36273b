// Command mediaengined runs the media engine as a standalone HTTP
// daemon, exposing internal/engine.Engine's session operations over a
// REST+SSE API for embedders that can't link the engine in-process.
package main

import (
	"os"

	"github.com/corten/mediaengine/cmd/mediaengined/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
