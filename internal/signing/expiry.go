package signing

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/metrics"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox"
	"github.com/angelmondragon/ledgerly-backend/pkg/outbox/payloads"
)

// Expirer persists the pending to expired transition. It is shared by the
// token validator, the collector and the cron sweep.
type Expirer struct {
	links   *LinkRepository
	tx      txRunner
	outbox  outbox.Emitter
	logg    *logger.Logger
	metrics *metrics.SigningMetrics
}

func NewExpirer(links *LinkRepository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger, m *metrics.SigningMetrics) (*Expirer, error) {
	if links == nil {
		return nil, fmt.Errorf("link repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Expirer{links: links, tx: tx, outbox: emitter, logg: logg, metrics: m}, nil
}

// Expire stores the expired status when NextStatus says the link moved.
// It must run inside a transaction and reports whether a row changed.
func (e *Expirer) Expire(dbc dbctx.Context, link models.SignatureLink, now time.Time) (bool, error) {
	if link.Status == enums.LinkStatusExpired || NextStatus(link, now) != enums.LinkStatusExpired {
		return false, nil
	}
	changed, err := e.links.MarkExpired(dbc, link.ID, now)
	if err != nil || !changed {
		return false, err
	}
	if err := e.outbox.Emit(dbc, outbox.DomainEvent{
		EventType:     enums.EventLinksExpired,
		AggregateType: enums.AggregateSignatureLink,
		AggregateID:   link.ID,
		Actor:         outbox.SystemActor(),
		Data: payloads.LinkExpiredEvent{
			LinkID:      link.ID,
			AgreementID: link.AgreementID,
			ClientID:    link.ClientID,
			ExpiredAt:   now,
		},
	}); err != nil {
		return false, err
	}
	e.metrics.AddLinksExpired(1)
	return true, nil
}

// Sweep expires up to batch overdue links in one transaction and returns how
// many were moved.
func (e *Expirer) Sweep(ctx context.Context, now time.Time, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	expired := 0
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		dbc := dbctx.New(ctx, tx)
		links, err := e.links.ListOverdue(dbc, now, batch)
		if err != nil {
			return err
		}
		for _, link := range links {
			changed, err := e.Expire(dbc, link, now)
			if err != nil {
				return err
			}
			if changed {
				expired++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		e.logg.Info(e.logg.WithField(ctx, "expired", expired), "signing links expired")
	}
	return expired, nil
}
