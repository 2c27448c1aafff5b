// Command poolserver is a demo HTTP/3 server that exercises every operation
// in the pool package under realistic request/response conditions: a
// per-request pool.Pool and pool.Array of headers, a long-lived pool.List of
// access-log records fed from a dedicated goroutine, and a spool-file
// cleanup handler that an fsnotify watcher can trigger early.
//
// It is not part of this module's library surface.
package main

import (
	"crypto/tls"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orizon-lang/arenapool/internal/runtime/netstack"
	"github.com/orizon-lang/arenapool/internal/version"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4433", "UDP address to serve HTTP/3 on")
	minABI := flag.String("min-abi", ">=1.0.0, <2.0.0", "semver constraint the running arenapool must satisfy")
	scratchDir := flag.String("scratch-dir", "", "directory for per-request spool files (disabled if empty)")
	certFile := flag.String("cert", "", "TLS certificate file (self-signed cert generated if empty)")
	keyFile := flag.String("key", "", "TLS key file (self-signed cert generated if empty)")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ok, err := version.Satisfies(*minABI)
	if err != nil {
		log.Error("invalid -min-abi constraint", "error", err)
		os.Exit(2)
	}

	if !ok {
		log.Error("arenapool ABI does not satisfy constraint", "abi", version.ABI, "constraint", *minABI)
		os.Exit(1)
	}

	if *scratchDir != "" {
		if err := os.MkdirAll(*scratchDir, 0o755); err != nil {
			log.Error("could not create scratch dir", "dir", *scratchDir, "error", err)
			os.Exit(1)
		}
	}

	accessLog, err := newAccessLogger(log)
	if err != nil {
		log.Error("could not start access logger", "error", err)
		os.Exit(1)
	}
	defer accessLog.Close()

	reg := newSpoolRegistry()

	stop := make(chan struct{})
	defer close(stop)

	if *scratchDir != "" {
		if err := watchSpoolDir(*scratchDir, reg, log, stop); err != nil {
			log.Error("could not start spool watcher", "error", err)
			os.Exit(1)
		}
	}

	srv := newServer(log, *scratchDir, accessLog, reg)

	tlsCfg, err := loadOrGenerateTLS(*certFile, *keyFile)
	if err != nil {
		log.Error("could not prepare TLS config", "error", err)
		os.Exit(1)
	}

	h3 := netstack.NewHTTP3ServerWithOptions(*addr, tlsCfg, srv, netstack.HTTP3Options{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	})

	realAddr, err := h3.Start()
	if err != nil {
		log.Error("could not start HTTP/3 server", "error", err)
		os.Exit(1)
	}

	log.Info("poolserver listening", "addr", realAddr, "abi", version.ABI)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		log.Info("shutting down")
	case err := <-h3.Error():
		log.Error("HTTP/3 server error", "error", err)
	}

	if err := h3.Stop(); err != nil {
		log.Error("error stopping HTTP/3 server", "error", err)
	}
}

func loadOrGenerateTLS(certFile, keyFile string) (*tls.Config, error) {
	if certFile != "" && keyFile != "" {
		return netstack.LoadTLSConfig(certFile, keyFile)
	}

	return netstack.GenerateSelfSignedTLS([]string{"localhost", "127.0.0.1"}, 365*24*time.Hour)
}
