// Package documents renders the signed agreement PDF.
package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerly-backend/internal/agreements"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/ledgerly-backend/pkg/errors"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/storage"
)

const (
	signatureMaxWidth  = 60.0
	signatureMaxHeight = 25.0
	timestampLayout    = "January 2, 2006 15:04 MST"
)

// Party is the display identity of a client on the document.
type Party struct {
	Name         string
	Organization *string
	Email        string
}

// PartyFromClient copies the display fields of a client row.
func PartyFromClient(c *models.Client) *Party {
	if c == nil {
		return nil
	}
	return &Party{Name: c.Name, Organization: c.Organization, Email: c.Email}
}

type aggregateReader interface {
	Get(ctx context.Context, ownerID, agreementID uuid.UUID) (*agreements.Aggregate, error)
}

type clientReader interface {
	FindClient(dbc dbctx.Context, clientID uuid.UUID) (*models.Client, error)
}

type objectReader interface {
	Download(ctx context.Context, objectPath string) (*storage.Object, error)
}

// Renderer builds agreement PDFs.
type Renderer struct {
	agreements aggregateReader
	clients    clientReader
	store      objectReader
	logg       *logger.Logger
	compress   bool
}

func NewRenderer(agreementsSvc aggregateReader, clients clientReader, store objectReader, logg *logger.Logger) (*Renderer, error) {
	if agreementsSvc == nil {
		return nil, fmt.Errorf("agreements service required")
	}
	if clients == nil {
		return nil, fmt.Errorf("client directory required")
	}
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Renderer{agreements: agreementsSvc, clients: clients, store: store, logg: logg, compress: true}, nil
}

// Render loads the owner's agreement and renders it. The client shown on
// the document is the most recent client signer, if any.
func (r *Renderer) Render(ctx context.Context, ownerID, agreementID uuid.UUID) ([]byte, error) {
	agg, err := r.agreements.Get(ctx, ownerID, agreementID)
	if err != nil {
		return nil, err
	}
	var party *Party
	if sig := agg.LatestClientSignature(); sig != nil && sig.ClientID != nil {
		client, err := r.clients.FindClient(dbctx.Background(ctx), *sig.ClientID)
		if err != nil {
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
				"agreement_id": agreementID.String(),
				"client_id":    sig.ClientID.String(),
				"error":        err.Error(),
			}), "signing client lookup failed")
		} else {
			party = PartyFromClient(client)
		}
	}
	return r.RenderAggregate(ctx, agg, party)
}

// RenderAggregate renders agg. client may be nil before any client signs.
func (r *Renderer) RenderAggregate(ctx context.Context, agg *agreements.Aggregate, client *Party) ([]byte, error) {
	if agg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agreement required")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	pdf.AliasNbPages("{nb}")
	pdf.SetTitle("Service Agreement", true)
	pdf.SetAuthor(agg.Agreement.ServiceProviderName, true)
	pdf.SetCreator("Ledgerly", true)
	pdf.SetCreationDate(agg.Agreement.CreatedAt)

	p := newPage(pdf)
	pdf.SetFooterFunc(p.footer)
	pdf.AddPage()

	p.title("Service Agreement")
	p.labelLine("Service Provider", agg.Agreement.ServiceProviderName)
	p.labelLine("Client", clientName(client))
	p.labelLine("Agreement Date", agg.Agreement.AgreementDate.Format(LongDateLayout))
	pdf.Ln(blockGap * 2)

	for i, c := range buildClauses(agg, client) {
		p.heading(i+1, c.title)
		for _, text := range c.body {
			p.paragraph(text)
		}
		if len(c.bullets) > 0 {
			p.bullets(c.bullets)
		}
		for _, text := range c.trailing {
			p.paragraph(text)
		}
	}

	if sig := agg.LatestClientSignature(); sig != nil {
		r.signatureBlock(ctx, p, "Client", sig)
	} else {
		p.paragraph("Client: awaiting signature.")
	}
	if sig := agg.ProviderSignature(); sig != nil {
		r.signatureBlock(ctx, p, "Service Provider", sig)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render agreement pdf")
	}
	return buf.Bytes(), nil
}

// signatureBlock draws the image scaled to the block width followed by the
// signer lines. An image that cannot be fetched or decoded is skipped.
func (r *Renderer) signatureBlock(ctx context.Context, p *page, role string, sig *models.Signature) {
	name, w, h, err := r.registerImage(ctx, p.pdf, sig)
	if err != nil {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"agreement_id": sig.AgreementID.String(),
			"signature_id": sig.ID.String(),
			"error":        err.Error(),
		}), "signature image unavailable, rendering text only")
	}

	textHeight := 3*bodyLine + blockGap
	if name != "" {
		p.reserve(h + textHeight)
		p.pdf.ImageOptions(name, pageMargin, p.pdf.GetY(), w, h, false, fpdf.ImageOptions{ReadDpi: false}, 0, "")
		p.pdf.SetY(p.pdf.GetY() + h + 1)
	} else {
		p.reserve(textHeight)
	}

	p.pdf.SetFont("Helvetica", "B", bodySize)
	p.pdf.CellFormat(p.width, bodyLine, p.tr(role), "", 1, "L", false, 0, "")
	p.pdf.SetFont("Helvetica", "", bodySize)
	p.pdf.CellFormat(p.width, bodyLine, p.tr(sig.SignerName), "", 1, "L", false, 0, "")
	p.pdf.CellFormat(p.width, bodyLine, p.tr(fmt.Sprintf("Signed %s · %s", sig.SignedAt.UTC().Format(timestampLayout), sig.DocumentID)), "", 1, "L", false, 0, "")
	p.pdf.Ln(blockGap * 2)
}

func (r *Renderer) registerImage(ctx context.Context, pdf *fpdf.Fpdf, sig *models.Signature) (string, float64, float64, error) {
	obj, err := r.store.Download(ctx, sig.ImagePath)
	if err != nil {
		return "", 0, 0, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(obj.Data))
	if err != nil {
		return "", 0, 0, err
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return "", 0, 0, errors.New("empty image")
	}
	opts := fpdf.ImageOptions{ImageType: imageType(format)}
	if opts.ImageType == "" {
		return "", 0, 0, fmt.Errorf("unsupported image format %q", format)
	}

	// A bad image puts fpdf into a sticky error state, so parse it on a
	// scratch document first.
	probe := fpdf.New("P", "mm", "A4", "")
	probe.RegisterImageOptionsReader("probe", opts, bytes.NewReader(obj.Data))
	if probe.Err() {
		return "", 0, 0, probe.Error()
	}

	name := "sig-" + sig.ID.String()
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(obj.Data))
	w, h := scaleToFit(float64(cfg.Width), float64(cfg.Height), signatureMaxWidth, signatureMaxHeight)
	return name, w, h, nil
}

func imageType(format string) string {
	switch format {
	case "png":
		return "PNG"
	case "jpeg":
		return "JPG"
	}
	return ""
}

// scaleToFit sizes an image to maxW preserving aspect ratio, shrinking
// further when the result would be taller than maxH.
func scaleToFit(w, h, maxW, maxH float64) (float64, float64) {
	outW := maxW
	outH := h * maxW / w
	if outH > maxH {
		outH = maxH
		outW = w * maxH / h
	}
	return outW, outH
}
