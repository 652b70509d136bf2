// mcphub - connects the MCP tools of one mode and manages them from a
// command prompt.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mcphub/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)

	code, err := cmd.Execute(ctx, os.Args[1:], cmd.Streams{
		In:  os.Stdin,
		Out: os.Stdout,
		Err: os.Stderr,
	})
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcphub: %v\n", err)
	}
	os.Exit(code)
}
