// Command memprotogw-server runs a memcached binary protocol gateway
// backed by an in-memory key/value store.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/kumofs/memprotogw"
	"github.com/kumofs/memprotogw/backend"
)

func main() {
	var (
		listenAddr    = pflag.StringP("listen", "l", ":11211", "address to listen on")
		workers       = pflag.IntP("workers", "w", 8, "backend worker goroutines")
		maxBodySize   = pflag.Uint32("max-body-size", 8<<20, "maximum request body size in bytes")
		acceptBacklog = pflag.Int("accept-backlog", 1024, "maximum concurrently served connections")
		debug         = pflag.Bool("debug", false, "enable debug logging")
	)
	pflag.Parse()

	config := &memprotogw.Config{
		InitialBufferSize: 2048,
		ReserveSize:       1024,
		MaxBodySize:       *maxBodySize,
		AcceptBacklog:     *acceptBacklog,
	}
	if err := memprotogw.VerifyConfig(config); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ln, err := memprotogw.Listen(*listenAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	store := backend.NewMemory(*workers)
	defer store.Close()

	logger := memprotogw.NewSlogLoggerLevel(*debug)

	gw := memprotogw.NewListener(ln, store, config, logger)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		gw.Close()
	}()

	logger.Printf("listening on %s", gw.Addr())
	if err := gw.Serve(); err != nil {
		logger.Printf("listener stopped: %v", err)
	}
}
