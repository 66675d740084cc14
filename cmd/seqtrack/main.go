// Command seqtrack captures or replays traffic and tracks per-flow sequence
// gaps, the way the teacher's CLI wraps its subsystems in a spf13/cobra root
// command.
package main

import "github.com/seqtrack/seqtrack/cmd/seqtrack/internal/cmd"

func main() {
	cmd.Execute()
}
