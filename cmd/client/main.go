// Package main runs the ResQWave focal client shell.
package main

import (
	"context"
	"crypto/cipher"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/atinyakov/ResQWave/internal/client/auth"
	"github.com/atinyakov/ResQWave/internal/client/countdown"
	"github.com/atinyakov/ResQWave/internal/client/credstore"
	"github.com/atinyakov/ResQWave/internal/client/gateway"
	"github.com/atinyakov/ResQWave/internal/client/neighborhood"
	"github.com/atinyakov/ResQWave/internal/client/prompt"
	"github.com/atinyakov/ResQWave/internal/client/session"
	"github.com/atinyakov/ResQWave/internal/config"
	"github.com/atinyakov/ResQWave/internal/logger"
	"go.uber.org/zap"
)

var (
	version   string
	buildDate string
)

// main parses configuration, wires the auth stack and starts the shell.
func main() {
	opts, err := config.ParseClient(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("ResQWave focal client %s (%s)\n", orDefault(version, "N/A"), orDefault(buildDate, "N/A"))

	lg := logger.New()
	if err := lg.Init(opts.LogLevel); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Log.Sync() }()

	kv, err := openKV(opts)
	if err != nil {
		lg.Log.Fatal("cannot open credential store", zap.Error(err))
	}
	store := credstore.New(kv, lg.Log)

	client, err := gateway.NewHTTPClient(opts.CAFile, opts.Timeout)
	if err != nil {
		lg.Log.Fatal("cannot build http client", zap.Error(err))
	}
	guard := session.NewGuard(lg.Log)
	gw := gateway.New(opts.BaseURL, client, store, guard, lg.Log)

	sh := newShell(
		prompt.New(os.Stdin, os.Stdout),
		os.Stdout,
		auth.New(gw, store, lg.Log),
		neighborhood.New(gw, lg.Log),
		countdown.New(countdown.WithLogger(lg.Log)),
		guard,
		opts.ResendCooldown,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sh.run(ctx)
}

// openKV picks the credential backend: memory for -ephemeral, otherwise the
// state file, sealed when a passphrase is configured.
func openKV(opts *config.ClientOptions) (credstore.KeyValue, error) {
	if opts.Ephemeral {
		return credstore.NewMemoryKV(), nil
	}
	var aead cipher.AEAD
	if opts.Passphrase != "" {
		var err error
		if aead, err = credstore.NewAEADFromPassphrase(opts.Passphrase); err != nil {
			return nil, err
		}
	}
	return credstore.NewFileKV(opts.StatePath, aead), nil
}

// orDefault returns v, or def when v is empty (Go 1.21 stand-in for cmp.Or).
func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
