package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ledgerly-backend/internal/agreements"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/storage/storagetest"
)

type stubAgreements struct {
	agg *agreements.Aggregate
	err error
}

func (s stubAgreements) Get(context.Context, uuid.UUID, uuid.UUID) (*agreements.Aggregate, error) {
	return s.agg, s.err
}

type stubClients struct {
	client *models.Client
	err    error
}

func (s stubClients) FindClient(dbctx.Context, uuid.UUID) (*models.Client, error) {
	return s.client, s.err
}

var pageObject = regexp.MustCompile(`/Type /Page\b[^s]`)

func newTestRenderer(t *testing.T, store *storagetest.MemoryStore, agg *agreements.Aggregate, client *models.Client) *Renderer {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "documents-test", Output: io.Discard})
	r, err := NewRenderer(stubAgreements{agg: agg}, stubClients{client: client}, store, logg)
	require.NoError(t, err)
	r.compress = false
	return r
}

func sampleAggregate(deliverables int) *agreements.Aggregate {
	agreementID := uuid.New()
	start := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	duration := 8
	unit := enums.DurationUnitWeeks
	method := "bank transfer"
	termID := uuid.New()

	agg := &agreements.Aggregate{
		Agreement: models.Agreement{
			ID:                  agreementID,
			ServiceProviderName: "Ada Provider",
			AgreementDate:       time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			ServiceType:         "web development",
			StartDate:           &start,
			EndDate:             &end,
			Duration:            &duration,
			DurationUnit:        &unit,
			RevisionCount:       2,
			Jurisdiction:        "Ontario, Canada",
			Status:              enums.AgreementStatusPending,
			CreatedAt:           time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		},
		PaymentTerm: &agreements.PaymentTerms{
			PaymentTerm: models.PaymentTerm{ID: termID, AgreementID: agreementID, Structure: enums.PaymentStructureMilestoneBased, PaymentMethod: &method},
			Milestones: []models.Milestone{
				{ID: uuid.New(), PaymentTermID: termID, Description: "Kickoff", Amount: decimal.RequireFromString("1500"), Position: 0},
				{ID: uuid.New(), PaymentTermID: termID, Description: "Launch", Amount: decimal.RequireFromString("2250.5"), Position: 1},
			},
		},
	}
	for i := 0; i < deliverables; i++ {
		agg.Deliverables = append(agg.Deliverables, models.Deliverable{
			ID:          uuid.New(),
			AgreementID: agreementID,
			Description: fmt.Sprintf("Deliverable %d: %s", i+1, strings.Repeat("detailed scope wording ", 8)),
			Position:    i,
		})
	}
	return agg
}

func withSignatures(agg *agreements.Aggregate, providerPath, clientPath string, clientID uuid.UUID) {
	agg.Signatures = []models.Signature{
		{
			ID:          uuid.New(),
			AgreementID: agg.Agreement.ID,
			SignerType:  enums.SignerTypeServiceProvider,
			SignerName:  "Ada Provider",
			ImagePath:   providerPath,
			DocumentID:  "AGR-20260302-aaaa0001",
			SignedAt:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:          uuid.New(),
			AgreementID: agg.Agreement.ID,
			SignerType:  enums.SignerTypeClient,
			ClientID:    &clientID,
			SignerName:  "Grace Client",
			ImagePath:   clientPath,
			DocumentID:  "AGR-20260303-bbbb0002",
			SignedAt:    time.Date(2026, 3, 3, 15, 30, 0, 0, time.UTC),
		},
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$1,500.00", FormatAmount(decimal.RequireFromString("1500")))
	assert.Equal(t, "$2,250.50", FormatAmount(decimal.RequireFromString("2250.5")))
	assert.Equal(t, "$0.99", FormatAmount(decimal.RequireFromString("0.99")))
}

func TestDescribeDuration(t *testing.T) {
	assert.Equal(t, "1 week", DescribeDuration(1, enums.DurationUnitWeeks))
	assert.Equal(t, "3 months", DescribeDuration(3, enums.DurationUnitMonths))
}

func TestDescribePaymentStructureCoversEveryStructure(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range []enums.PaymentStructure{
		enums.PaymentStructureSplit50,
		enums.PaymentStructureUpfront,
		enums.PaymentStructureOnCompletion,
		enums.PaymentStructureMilestoneBased,
	} {
		text := DescribePaymentStructure(s)
		require.NotEmpty(t, text)
		seen[text] = true
	}
	assert.Len(t, seen, 4)
}

func TestScaleToFit(t *testing.T) {
	w, h := scaleToFit(300, 100, 60, 25)
	assert.InDelta(t, 60, w, 0.001)
	assert.InDelta(t, 20, h, 0.001)

	w, h = scaleToFit(100, 100, 60, 25)
	assert.InDelta(t, 25, w, 0.001)
	assert.InDelta(t, 25, h, 0.001)
}

func TestRenderAggregateBreaksPagesAndNumbersThem(t *testing.T) {
	store := storagetest.NewMemoryStore()
	agg := sampleAggregate(40)
	r := newTestRenderer(t, store, agg, nil)

	out, err := r.RenderAggregate(context.Background(), agg, nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), "%PDF"))

	pages := len(pageObject.FindAll(out, -1))
	require.Greater(t, pages, 1, "long deliverable lists must spill onto further pages")
	body := string(out)
	assert.Contains(t, body, "Page 1 of "+fmt.Sprint(pages))
	assert.Contains(t, body, fmt.Sprintf("Page %d of %d", pages, pages))
	assert.Contains(t, body, "11. Acceptance & Signatures")
	assert.Contains(t, body, "$1,500.00")
	assert.Contains(t, body, "8 weeks")
	assert.Contains(t, body, "March 9, 2026")
}

func TestRenderAggregateEmbedsSignatureImages(t *testing.T) {
	store := storagetest.NewMemoryStore()
	store.Put("signatures/owner/provider.png", "image/png", storagetest.SignaturePNG(t, 300, 100))
	store.Put("signatures/client/client.png", "image/png", storagetest.SignaturePNG(t, 200, 80))
	agg := sampleAggregate(2)
	withSignatures(agg, "signatures/owner/provider.png", "signatures/client/client.png", uuid.New())
	r := newTestRenderer(t, store, agg, nil)

	org := "Hopper Labs"
	out, err := r.RenderAggregate(context.Background(), agg, &Party{Name: "Grace Client", Organization: &org})
	require.NoError(t, err)

	body := string(out)
	assert.Equal(t, 2, strings.Count(body, "/Subtype /Image"))
	assert.Contains(t, body, "Grace Client of Hopper Labs")
	require.Contains(t, body, "(Client)Tj")
	require.Contains(t, body, "(Service Provider)Tj")
	assert.Less(t, strings.Index(body, "(Client)Tj"), strings.Index(body, "(Service Provider)Tj"), "client block precedes provider block")
}

func TestRenderAggregateFallsBackToTextWhenImageUnavailable(t *testing.T) {
	store := storagetest.NewMemoryStore()
	store.Put("signatures/client/client.png", "image/png", []byte("not really a png"))
	agg := sampleAggregate(2)
	withSignatures(agg, "signatures/owner/missing.png", "signatures/client/client.png", uuid.New())
	r := newTestRenderer(t, store, agg, nil)

	out, err := r.RenderAggregate(context.Background(), agg, nil)
	require.NoError(t, err)

	body := string(out)
	assert.NotContains(t, body, "/Subtype /Image")
	assert.Contains(t, body, "Grace Client")
	assert.Contains(t, body, "Ada Provider")
	assert.Contains(t, body, "AGR-20260303-bbbb0002")
}

func TestRenderLoadsSigningClient(t *testing.T) {
	store := storagetest.NewMemoryStore()
	agg := sampleAggregate(1)
	clientID := uuid.New()
	withSignatures(agg, "missing-a", "missing-b", clientID)
	r := newTestRenderer(t, store, agg, &models.Client{ID: clientID, Name: "Grace Client"})

	out, err := r.Render(context.Background(), uuid.New(), agg.Agreement.ID)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Client: Grace Client")
}

func TestRenderPropagatesLookupErrors(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "documents-test", Output: io.Discard})
	r, err := NewRenderer(stubAgreements{err: errors.New("boom")}, stubClients{}, storagetest.NewMemoryStore(), logg)
	require.NoError(t, err)

	_, err = r.Render(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
}
