// Command nameserver runs a standalone name server process: the one
// process every other agent needs a control address for out-of-band.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/stdr"

	"github.com/tenzoki/agentwire/public/nameserver"
)

func main() {
	host := flag.String("host", "0.0.0.0", "bind host")
	port := flag.Int("port", 0, "bind port (0 picks one)")
	flag.Parse()

	stdLog := log.New(os.Stdout, "", log.LstdFlags)
	logger := stdr.New(stdLog)

	svc, err := nameserver.New(*host, *port, logger)
	if err != nil {
		stdLog.Fatalf("nameserver: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Run(ctx)
	}()

	stdLog.Printf("nameserver listening at %s", svc.Address().String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		stdLog.Printf("received signal: %s, shutting down", sig)
	case <-ctx.Done():
	}

	cancel()

	select {
	case <-done:
		stdLog.Println("nameserver stopped")
	case <-time.After(10 * time.Second):
		stdLog.Println("shutdown timeout exceeded")
	}
}
