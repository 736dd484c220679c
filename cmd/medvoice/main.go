// Command medvoice records a clinical encounter and prints a SOAP note.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/medvoice/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	exitCode := app.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode)
}
