package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"blockedit.ai/internal/editor"
	"blockedit.ai/internal/transport/ws"
)

func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	c := addCommon(fs)
	listen := fs.String("listen", "", "http listen address (default: listen from the config)")
	enablePprof := fs.Bool("pprof", false, "mount /debug/pprof")
	_ = fs.Parse(args)

	logger := log.New(os.Stdout, "[blockedit] ", log.LstdFlags|log.Lmicroseconds)
	cfg := c.cfg()
	addr := strings.TrimSpace(*listen)
	if addr == "" {
		addr = cfg.Listen
	}

	sess, err := editor.Open(cfg, editor.Options{Logger: logger})
	if err != nil {
		logger.Fatalf("open session: %v", err)
	}
	onExit(sess.Close)
	defer sess.Close()
	// A broken source file still lets clients connect and load another one.
	if err := sess.Load(""); err != nil {
		logger.Printf("load %s: %v", cfg.SourcePath, err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	ws.NewServer(sess, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)).Routes(mux)
	if *enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (source=%s atlas=%s)", addr, cfg.SourcePath, cfg.Atlas.Path)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		exit(1)
	}
	if sess.Dirty() {
		logger.Printf("shutting down with unsaved edits")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
