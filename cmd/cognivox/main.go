// Package main provides the cognivox server and CLI.
//
// Usage:
//
//	cognivox [flags] <command> [args]
//
// Commands:
//
//	serve     - HTTP API, recording control and websocket events
//	record    - capture one recording slot from the configured microphone
//	analyze   - transcribe and score an audio file
//	submit    - analyze WAV files and store them as voice recordings
//	dashboard - show stored recordings as a terminal dashboard
//	seed      - load fixture documents into the store
//
// Configuration:
//
//	Settings come from the environment, with a .env file loaded first when
//	one exists in the working directory or its parent.
package main

import (
	"fmt"
	"os"

	"cognivox-server/cmd/cognivox/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
