// Package main is the entry point for databendd.
//
// databendd is a native core for video-glitch ("databending") workflows:
// it decodes source video, applies deterministic frame- and
// bitstream-level glitch transforms, re-encodes the result, and exposes
// job submission, live preview and progress reporting over HTTP.
package main

import (
	"os"

	"github.com/sixem/databendd/cmd/databendd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
