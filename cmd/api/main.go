package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ledgerly-backend/api/routes"
	"github.com/angelmondragon/ledgerly-backend/internal/bootstrap"
	"github.com/angelmondragon/ledgerly-backend/internal/agreements"
	"github.com/angelmondragon/ledgerly-backend/internal/directory"
	"github.com/angelmondragon/ledgerly-backend/internal/documents"
	"github.com/angelmondragon/ledgerly-backend/internal/signing"
	"github.com/angelmondragon/ledgerly-backend/pkg/config"
	"github.com/angelmondragon/ledgerly-backend/pkg/db"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/metrics"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox"
	"github.com/angelmondragon/ledgerly-backend/pkg/sendgrid"
	"github.com/angelmondragon/ledgerly-backend/pkg/storage/gcs"
)

func main() {
	proc, err := bootstrap.Start("api")
	if err != nil {
		os.Exit(1)
	}
	ctx, stop := proc.RunContext()
	defer stop()

	proc.Exit(ctx, run(ctx, proc))
}

func run(ctx context.Context, proc *bootstrap.Process) error {
	cfg, logg := proc.Config, proc.Logger
	dbClient, err := proc.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := proc.Redis(ctx)
	if err != nil {
		return err
	}
	store, err := proc.Storage(ctx)
	if err != nil {
		return err
	}
	mailer, err := newMailer(cfg, logg)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	signingMetrics := metrics.NewSigningMetrics(registry)

	svc, err := buildServices(cfg, logg, dbClient, store, mailer, signingMetrics)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			store,
			registry,
			signingMetrics,
			svc.agreements,
			svc.issuer,
			svc.validator,
			svc.collector,
			svc.renderer,
		),
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()
	logg.Info(logg.WithField(ctx, "addr", server.Addr), "api server listening")

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	logg.Info(ctx, "api server draining")
	return server.Shutdown(shutdownCtx)
}

// shutdownGrace fits inside the 30s Heroku gives a dyno after SIGTERM.
const shutdownGrace = 25 * time.Second

type services struct {
	agreements agreements.Service
	issuer     *signing.Issuer
	validator  *signing.Validator
	collector  *signing.Collector
	renderer   *documents.Renderer
}

func buildServices(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	store *gcs.Client,
	mailer sendgrid.Mailer,
	m *metrics.SigningMetrics,
) (*services, error) {
	conn := dbClient.DB()
	agreementRepo := agreements.NewRepository(conn)
	directoryRepo := directory.NewRepository(conn)
	linkRepo := signing.NewLinkRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	agreementService, err := agreements.NewService(agreements.ServiceParams{
		Repo:              agreementRepo,
		Directory:         directoryRepo,
		Tx:                dbClient,
		Store:             store,
		Outbox:            emitter,
		Logger:            logg,
		Metrics:           m,
		EditWindow:        cfg.Signing.EditWindow,
		MaxSignatureBytes: cfg.Signing.MaxSignatureBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("agreements service: %w", err)
	}

	renderer, err := documents.NewRenderer(agreementService, directoryRepo, store, logg)
	if err != nil {
		return nil, fmt.Errorf("document renderer: %w", err)
	}

	expirer, err := signing.NewExpirer(linkRepo, dbClient, emitter, logg, m)
	if err != nil {
		return nil, fmt.Errorf("link expirer: %w", err)
	}

	notifier, err := signing.NewNotifier(mailer, cfg.Signing.NotificationsReply)
	if err != nil {
		return nil, fmt.Errorf("signing notifier: %w", err)
	}

	params := signing.Params{
		Agreements:        agreementRepo,
		Links:             linkRepo,
		Directory:         directoryRepo,
		Tx:                dbClient,
		Store:             store,
		Outbox:            emitter,
		Expirer:           expirer,
		Notifier:          notifier,
		Renderer:          renderer,
		Logger:            logg,
		Metrics:           m,
		PublicAppURL:      cfg.Signing.PublicAppURL,
		LinkTTL:           cfg.Signing.LinkTTL,
		DocumentURLTTL:    cfg.Signing.DocumentURLTTL,
		RenderTimeout:     cfg.Signing.RenderTimeout,
		MaxSignatureBytes: cfg.Signing.MaxSignatureBytes,
	}
	issuer, err := signing.NewIssuer(params)
	if err != nil {
		return nil, fmt.Errorf("signing issuer: %w", err)
	}
	validator, err := signing.NewValidator(params)
	if err != nil {
		return nil, fmt.Errorf("signing validator: %w", err)
	}
	collector, err := signing.NewCollector(params)
	if err != nil {
		return nil, fmt.Errorf("signature collector: %w", err)
	}

	return &services{
		agreements: agreementService,
		issuer:     issuer,
		validator:  validator,
		collector:  collector,
		renderer:   renderer,
	}, nil
}

// newMailer falls back to logging outbound mail in dev when no SendGrid key
// is configured.
func newMailer(cfg *config.Config, logg *logger.Logger) (sendgrid.Mailer, error) {
	if cfg.Sendgrid.APIKey == "" && cfg.App.IsDev() {
		logg.Warn(context.Background(), "sendgrid api key not set, emails will be logged only")
		return sendgrid.NewLogMailer(logg), nil
	}
	return sendgrid.New(cfg.Sendgrid, logg)
}
