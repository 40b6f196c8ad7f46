package signing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerly-backend/internal/agreements"
	"github.com/angelmondragon/ledgerly-backend/internal/documents"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/metrics"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox"
	"github.com/angelmondragon/ledgerly-backend/pkg/storage"
)

const (
	// DefaultLinkTTL is how long an issued or rotated link stays usable.
	DefaultLinkTTL = 48 * time.Hour
	// DefaultDocumentURLTTL bounds the signed URL mailed with the PDF.
	DefaultDocumentURLTTL = 7 * 24 * time.Hour
	// DefaultRenderTimeout bounds post-signature delivery.
	DefaultRenderTimeout = 30 * time.Second
)

// SignPath is the public app route the signing token is appended to.
const SignPath = "/agreement/sign/"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type partyDirectory interface {
	FindUser(dbc dbctx.Context, userID uuid.UUID) (*models.User, error)
	FindClientsOwnedBy(dbc dbctx.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]models.Client, error)
	FindClient(dbc dbctx.Context, clientID uuid.UUID) (*models.Client, error)
}

type documentRenderer interface {
	RenderAggregate(ctx context.Context, agg *agreements.Aggregate, client *documents.Party) ([]byte, error)
}

// Params bundles the dependencies shared by the issuer, validator and
// collector. Each constructor checks the subset it uses.
type Params struct {
	Agreements        *agreements.Repository
	Links             *LinkRepository
	Directory         partyDirectory
	Tx                txRunner
	Store             storage.Store
	Outbox            outbox.Emitter
	Expirer           *Expirer
	Notifier          *Notifier
	Renderer          documentRenderer
	Logger            *logger.Logger
	Metrics           *metrics.SigningMetrics
	PublicAppURL      string
	LinkTTL           time.Duration
	DocumentURLTTL    time.Duration
	RenderTimeout     time.Duration
	MaxSignatureBytes int
	Clock             func() time.Time
}

func (p Params) checkBase() error {
	if p.Agreements == nil {
		return fmt.Errorf("agreements repository required")
	}
	if p.Links == nil {
		return fmt.Errorf("link repository required")
	}
	if p.Directory == nil {
		return fmt.Errorf("directory repository required")
	}
	if p.Tx == nil {
		return fmt.Errorf("transaction runner required")
	}
	if p.Expirer == nil {
		return fmt.Errorf("link expirer required")
	}
	if p.Logger == nil {
		return fmt.Errorf("logger required")
	}
	return nil
}

func (p Params) clock() func() time.Time {
	if p.Clock == nil {
		return time.Now
	}
	return p.Clock
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// SigningURL joins the public app base with the token route.
func SigningURL(baseURL, token string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + SignPath + token
}
