// Package main is the entry point for the relay admin service.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/divinevideo/relay-admin/internal/api"
	"github.com/divinevideo/relay-admin/internal/auth"
	"github.com/divinevideo/relay-admin/internal/config"
	"github.com/divinevideo/relay-admin/internal/credential"
	"github.com/divinevideo/relay-admin/internal/helpdesk"
	"github.com/divinevideo/relay-admin/internal/media"
	"github.com/divinevideo/relay-admin/internal/metrics"
	"github.com/divinevideo/relay-admin/internal/moderation"
	"github.com/divinevideo/relay-admin/internal/relay"
	"github.com/divinevideo/relay-admin/internal/storage"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "relay-admin:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "relay-admin",
		Usage:   "moderation control plane for a Nostr relay",
		Version: version,
		Action:  runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API (default)",
				Action: runServe,
			},
			{
				Name:  "secret",
				Usage: "manage the encrypted secret store",
				Subcommands: []*cli.Command{
					{
						Name:      "set",
						Usage:     "store a secret; the value is read from --value or the first line of stdin",
						ArgsUsage: "<name>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "value", Usage: "secret value"},
						},
						Action: runSecretSet,
					},
					{
						Name:      "delete",
						Usage:     "remove a secret",
						ArgsUsage: "<name>",
						Action:    runSecretDelete,
					},
				},
			},
		},
	}
}

// newLogger builds the JSON logger. The returned LevelVar changes its level at runtime.
func newLogger(level string, w io.Writer) (*slog.Logger, *slog.LevelVar) {
	levelVar := new(slog.LevelVar)
	if err := levelVar.UnmarshalText([]byte(level)); err != nil {
		levelVar.Set(slog.LevelInfo)
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar})
	return slog.New(handler), levelVar
}

func runServe(cctx *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, levelVar := newLogger(cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)

	store, err := storage.New(cfg.DatabasePath, cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close storage", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	metrics.Version = version
	if err := metrics.Init(reg); err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildServer(ctx, cfg, store, logger, levelVar)
	if err != nil {
		return err
	}
	defer app.Close()

	apiSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsListenAddr,
		Handler:           metrics.HandlerFor(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("relay admin starting",
		"version", version,
		"listen_addr", cfg.ListenAddr,
		"metrics_addr", cfg.MetricsListenAddr,
		"relay_url", cfg.RelayURL,
		"management_url", app.ManagementURL,
		"zendesk", cfg.ZendeskEnabled(),
		"media_service", cfg.ModerationServiceURL != "",
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listen(apiSrv) })
	g.Go(func() error { return listen(metricsSrv) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return errors.Join(apiSrv.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	return nil
}

// server is the assembled HTTP handler and the background work it owns.
type server struct {
	Handler       http.Handler
	ManagementURL string
	notes         *helpdesk.Queue
}

// Close drains the helpdesk note queue.
func (s *server) Close() {
	if s.notes != nil {
		s.notes.Close()
	}
}

// buildServer wires every component from cfg. Secrets given as "store:<name>"
// resolve through store on each use.
func buildServer(ctx context.Context, cfg *config.Config, store *storage.SQLiteStorage, logger *slog.Logger, levelVar *slog.LevelVar) (*server, error) {
	secret := func(raw string) credential.Credential { return credential.Parse(raw, store) }

	managementURL, err := relay.ManagementURL(cfg.RelayURL, cfg.RelayManagementPath, cfg.RelayManagementURL)
	if err != nil {
		return nil, err
	}

	signer := relay.NewSigner(secret(cfg.NostrSecretKey))
	rpc := relay.NewRPCClient(managementURL, signer, cfg.RelayRPCTimeout, relay.WithLogger(logger))
	publisher := relay.NewPublisher(cfg.RelayURL, cfg.PublishTimeout)
	querier := relay.NewQuerier(cfg.RelayURL, cfg.PublishTimeout)

	srv := &server{ManagementURL: managementURL}

	modCfg := moderation.Config{
		Relay:             rpc,
		Signer:            signer,
		Publisher:         publisher,
		Querier:           querier,
		Audit:             store,
		Logger:            logger.With("component", "moderation"),
		VerifyDelay:       cfg.VerifyDelay,
		Concurrency:       cfg.FanoutConcurrency,
		Rate:              cfg.FanoutRate,
		RecentEventsLimit: cfg.RecentEventsLimit,
	}
	apiCfg := api.Config{
		Store:          store,
		RPC:            rpc,
		Signer:         signer,
		RelayURL:       cfg.RelayURL,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
		LogLevel:       levelVar,
		Mobile: &helpdesk.MobileIssuer{
			Secret: secret(cfg.ZendeskMobileJWTSecret),
			KeyID:  cfg.ZendeskMobileKeyID,
		},
	}

	if cfg.ModerationServiceURL != "" {
		mediaClient := media.NewClient(cfg.ModerationServiceURL, secret(cfg.ModerationServiceToken),
			media.WithLogger(logger))
		modCfg.Media = mediaClient
		apiCfg.Media = mediaClient
	}

	if cfg.ZendeskEnabled() {
		client := helpdesk.NewClient(cfg.ZendeskSubdomain, cfg.ZendeskAPIEmail, secret(cfg.ZendeskAPIToken),
			helpdesk.WithLogger(logger))
		srv.notes = helpdesk.NewQueue(client, helpdesk.DefaultQueueSize, logger.With("component", "helpdesk"))
		srv.notes.Start(context.WithoutCancel(ctx))
		modCfg.Notes = srv.notes
		apiCfg.Notes = srv.notes
	}

	nip98 := auth.NewNIP98Verifier(nil, cfg.PublicBaseURL)
	moderators := auth.NewNIP98Verifier(cfg.ModeratorPubkeys, cfg.PublicBaseURL)
	apiCfg.Operator = &auth.OperatorVerifier{TokenHash: cfg.OperatorTokenHash, NIP98: moderators}
	apiCfg.Helpdesk = auth.NewJWTVerifier(secret(cfg.ZendeskJWTSecret))
	apiCfg.NIP98 = nip98
	apiCfg.Webhook = auth.NewWebhookVerifier(secret(cfg.ZendeskWebhookSecret))

	apiCfg.Moderator = moderation.New(modCfg)
	srv.Handler = api.New(apiCfg).NewRouter()
	return srv, nil
}

// openSecretStore opens the database named by DATABASE_PATH without requiring
// the rest of the service configuration.
func openSecretStore() (*storage.SQLiteStorage, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if len(cfg.EncryptionKey) != 32 {
		return nil, errors.New("ENCRYPTION_KEY must be 64 hex characters (32 bytes)")
	}
	return storage.New(cfg.DatabasePath, cfg.EncryptionKey)
}

func runSecretSet(cctx *cli.Context) error {
	name := strings.TrimSpace(cctx.Args().First())
	if name == "" {
		return errors.New("secret name is required")
	}

	value := cctx.String("value")
	if value == "" {
		line, err := bufio.NewReader(cctx.App.Reader).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read secret: %w", err)
		}
		value = strings.TrimSpace(line)
	}
	if value == "" {
		return errors.New("secret value is empty")
	}

	store, err := openSecretStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SetSecret(cctx.Context, name, value); err != nil {
		return err
	}
	fmt.Fprintf(cctx.App.Writer, "stored secret %q; reference it as %s%s\n", name, credential.StorePrefix, name)
	return nil
}

func runSecretDelete(cctx *cli.Context) error {
	name := strings.TrimSpace(cctx.Args().First())
	if name == "" {
		return errors.New("secret name is required")
	}

	store, err := openSecretStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteSecret(cctx.Context, name); err != nil {
		return err
	}
	fmt.Fprintf(cctx.App.Writer, "deleted secret %q\n", name)
	return nil
}
