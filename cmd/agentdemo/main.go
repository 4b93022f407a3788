// Command agentdemo runs a small writing agent through the agentcore engine.
//
// It wires every hook package together: structured logging, OpenTelemetry spans,
// persisted session state and human approval checkpoints answered at the terminal.
// Press Ctrl-C during a run to pause it; resume later with "agentdemo resume".
package main

import (
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
