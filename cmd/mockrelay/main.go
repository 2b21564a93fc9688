// Package main implements a standalone mock Nostr relay for local E2E testing.
// It speaks NIP-86 management over HTTP and NIP-01 over WebSocket on one port.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/divinevideo/relay-admin/internal/testutil/mockrelay"
)

// getPort returns the port from the PORT environment variable or the default.
func getPort() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "7777"
	}
	return port
}

// getPublicURL is the base URL clients sign NIP-98 u tags for.
func getPublicURL(port string) string {
	if u := os.Getenv("PUBLIC_URL"); u != "" {
		return u
	}
	return "http://localhost:" + port
}

// requireAuth reads MOCKRELAY_REQUIRE_AUTH; NIP-98 checks stay on unless it is false.
func requireAuth() bool {
	v, err := strconv.ParseBool(os.Getenv("MOCKRELAY_REQUIRE_AUTH"))
	return err != nil || v
}

// newHandler serves /health and hands everything else to the relay.
func newHandler(relay *mockrelay.Relay) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // Response write errors are unrecoverable
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/", relay)
	return mux
}

// runHealthCheck performs an HTTP health check against the local server.
// Returns 0 on success, 1 on failure. Used by container HEALTHCHECK.
func runHealthCheck() int {
	return doHealthCheck("http://localhost:" + getPort() + "/health")
}

func doHealthCheck(url string) int {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return 1
	}
	//nolint:errcheck // Response body close errors are unrecoverable in health check
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "health" {
		os.Exit(runHealthCheck())
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	port := getPort()
	relay := mockrelay.NewRelay(getPublicURL(port), logger)
	relay.RequireAuth(requireAuth())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newHandler(relay),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down mockrelay")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		//nolint:errcheck
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("mockrelay listening", "port", port, "public_url", getPublicURL(port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server error", "error", err)
		os.Exit(1)
	}
}
