// Command memocache inspects and maintains memocache artifacts: properties,
// perf counters, cached entries and resets.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(realMain(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func realMain(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := newApp(stdout, stderr)
	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
