// CoilCut plans how to slit aluminium master coils into customer strips.
//
// Build:
//
//	go build -o coilcut ./cmd/coilcut
//
// Usage:
//
//	coilcut solve --stock stock.xlsx --orders orders.csv --out plans/
//	coilcut compare --job week42.json
//	coilcut search --job week42.json --mode quick --workers 4
//	coilcut suggest --stock stock.xlsx --orders orders.csv --save-preset week42
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
