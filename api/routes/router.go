package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/ledgerly-backend/api/controllers"
	"github.com/angelmondragon/ledgerly-backend/api/middleware"
	"github.com/angelmondragon/ledgerly-backend/internal/agreements"
	"github.com/angelmondragon/ledgerly-backend/internal/signing"
	"github.com/angelmondragon/ledgerly-backend/pkg/config"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/ledgerly-backend/pkg/redis"
)

// maxRequestBytes leaves room for a base64 signature image at the
// configured cap plus the surrounding JSON.
const maxRequestBytes = 4 << 20

type signingIssuer interface {
	SendToClients(ctx context.Context, ownerID, agreementID uuid.UUID, clientIDs []uuid.UUID, baseURL string) (*signing.SendResult, error)
}

type signingValidator interface {
	Validate(ctx context.Context, token string) (*signing.Validation, error)
}

type signingCollector interface {
	Submit(ctx context.Context, token string, input agreements.SignatureInput, ip string) (*signing.Receipt, error)
	Update(ctx context.Context, token string, input agreements.SignatureInput, ip string) (*signing.Receipt, error)
}

type pdfRenderer interface {
	Render(ctx context.Context, ownerID, agreementID uuid.UUID) ([]byte, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *pkgredis.Client,
	gcsClient controllers.Pinger,
	gatherer prometheus.Gatherer,
	signingMetrics *metrics.SigningMetrics,
	agreementService agreements.Service,
	issuer signingIssuer,
	validator signingValidator,
	collector signingCollector,
	renderer pdfRenderer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.BodyLimit(maxRequestBytes),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readinessDeps(dbP, redisClient, gcsClient), logg))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	signingPolicy := middleware.NewRateLimitPolicy(
		"signing",
		cfg.RateLimit.Window,
		cfg.RateLimit.IPLimit,
		cfg.RateLimit.TokenLimit,
	)
	r.Route("/api/public/v1/agreements/sign/{token}", func(r chi.Router) {
		if redisClient != nil {
			r.Use(middleware.SigningRateLimit(signingPolicy, redisClient, signingMetrics, logg))
		}
		r.Get("/", controllers.SigningGet(validator, logg))
		r.Post("/", controllers.SigningSubmit(collector, logg))
		r.Put("/", controllers.SigningUpdate(collector, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		replay := func(next http.Handler) http.Handler { return next }
		if redisClient != nil {
			replay = middleware.Idempotency(redisClient, cfg.Eventing.HTTPReplayTTL, logg)
		}

		r.Route("/agreements", func(r chi.Router) {
			r.With(replay).Post("/", controllers.AgreementCreate(agreementService, logg))
			r.Get("/", controllers.AgreementList(agreementService, logg))
			r.Route("/{agreementId}", func(r chi.Router) {
				r.Get("/", controllers.AgreementGet(agreementService, logg))
				r.Patch("/", controllers.AgreementUpdate(agreementService, logg))
				r.Delete("/", controllers.AgreementDelete(agreementService, logg))
				r.With(replay).Post("/send", controllers.AgreementSend(issuer, cfg.App.CORSOrigins, logg))
				r.Get("/pdf", controllers.AgreementPDF(renderer, logg))
			})
		})
		r.Get("/projects/{projectId}/agreement", controllers.AgreementGetByProject(agreementService, logg))
	})

	return r
}

func readinessDeps(dbP controllers.Pinger, redisClient *pkgredis.Client, gcsClient controllers.Pinger) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["database"] = dbP
	}
	if redisClient != nil {
		deps["redis"] = redisClient
	}
	if gcsClient != nil {
		deps["storage"] = gcsClient
	}
	return deps
}
