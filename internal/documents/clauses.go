package documents

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/angelmondragon/ledgerly-backend/internal/agreements"
	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
)

// LongDateLayout renders dates the way they read in the agreement body.
const LongDateLayout = "January 2, 2006"

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatAmount renders a milestone amount as US currency with grouping.
func FormatAmount(amount decimal.Decimal) string {
	return printer.Sprintf("$%.2f", amount.Round(2).InexactFloat64())
}

// LongDate formats t in long form, or "" for nil.
func LongDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(LongDateLayout)
}

// DescribeDuration spells out the duration with its unit.
func DescribeDuration(n int, unit enums.DurationUnit) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit.Singular())
	}
	return fmt.Sprintf("%d %s", n, unit)
}

// DescribePaymentStructure maps the enum to the sentence used in the
// payment clause.
func DescribePaymentStructure(s enums.PaymentStructure) string {
	switch s {
	case enums.PaymentStructureSplit50:
		return "50% of the total fee is due before work begins and the remaining 50% is due upon completion of the work."
	case enums.PaymentStructureUpfront:
		return "The full fee is due before work begins."
	case enums.PaymentStructureOnCompletion:
		return "The full fee is due upon completion of the work."
	case enums.PaymentStructureMilestoneBased:
		return "The fee is payable in installments as each of the following milestones is completed:"
	}
	return "Payment terms will be agreed between the parties in writing."
}

type clause struct {
	title    string
	body     []string
	bullets  []string
	trailing []string
}

func clientName(client *Party) string {
	if client == nil || strings.TrimSpace(client.Name) == "" {
		return "the Client"
	}
	if client.Organization != nil && strings.TrimSpace(*client.Organization) != "" {
		return fmt.Sprintf("%s of %s", client.Name, *client.Organization)
	}
	return client.Name
}

func buildClauses(agg *agreements.Aggregate, client *Party) []clause {
	a := agg.Agreement
	provider := a.ServiceProviderName
	party := clientName(client)

	deliverables := make([]string, 0, len(agg.Deliverables))
	for _, d := range agg.Deliverables {
		deliverables = append(deliverables, d.Description)
	}

	return []clause{
		{
			title: "Scope of Work",
			body: []string{fmt.Sprintf(
				"%s (the \"Service Provider\") agrees to provide %s services to %s (the \"Client\"). The work consists of the following deliverables:",
				provider, a.ServiceType, party)},
			bullets: deliverables,
		},
		{title: "Timeline", body: timelineText(agg)},
		paymentClause(agg),
		{title: "Revisions", body: []string{revisionsText(a.RevisionCount)}},
		{
			title: "Client Responsibilities",
			body: []string{"The Client will provide the content, feedback, approvals and access the Service Provider reasonably needs to perform the work. Delays caused by late input may extend the timeline accordingly."},
		},
		{
			title: "Ownership & Intellectual Property",
			body: []string{"Upon receipt of full payment, ownership of the final deliverables transfers to the Client. The Service Provider retains ownership of pre-existing materials and tools and may display the work in a portfolio unless the Client objects in writing."},
		},
		{
			title: "Confidentiality",
			body: []string{"Each party will keep confidential any non-public information received from the other party and will use it only to perform this Agreement."},
		},
		{
			title: "Termination",
			body: []string{"Either party may terminate this Agreement with written notice. The Client will pay for work completed up to the termination date."},
		},
		{
			title: "Limitation of Liability",
			body: []string{"The Service Provider's total liability under this Agreement is limited to the fees paid by the Client. Neither party is liable for indirect or consequential damages."},
		},
		{
			title: "Governing Law",
			body: []string{fmt.Sprintf("This Agreement is governed by the laws of %s.", a.Jurisdiction)},
		},
		{
			title: "Acceptance & Signatures",
			body: []string{fmt.Sprintf("This Agreement is dated %s. By signing below, the parties accept the terms set out above.", a.AgreementDate.Format(LongDateLayout))},
		},
	}
}

func timelineText(agg *agreements.Aggregate) []string {
	a := agg.Agreement
	var out []string
	switch {
	case a.StartDate != nil && a.EndDate != nil:
		out = append(out, fmt.Sprintf("Work will begin on %s and is expected to be completed by %s.", LongDate(a.StartDate), LongDate(a.EndDate)))
	case a.StartDate != nil:
		out = append(out, fmt.Sprintf("Work will begin on %s.", LongDate(a.StartDate)))
	case a.EndDate != nil:
		out = append(out, fmt.Sprintf("Work is expected to be completed by %s.", LongDate(a.EndDate)))
	}
	if a.Duration != nil && a.DurationUnit != nil {
		out = append(out, fmt.Sprintf("The estimated duration of the engagement is %s.", DescribeDuration(*a.Duration, *a.DurationUnit)))
	}
	if len(out) == 0 {
		out = append(out, "The timeline will be agreed between the parties in writing.")
	}
	return out
}

func paymentClause(agg *agreements.Aggregate) clause {
	c := clause{title: "Payment Terms"}
	if agg.PaymentTerm == nil {
		c.body = []string{DescribePaymentStructure("")}
		return c
	}
	term := agg.PaymentTerm
	c.body = []string{DescribePaymentStructure(term.Structure)}
	if term.Structure.RequiresMilestones() {
		total := decimal.Zero
		for _, m := range term.Milestones {
			line := fmt.Sprintf("%s: %s", m.Description, FormatAmount(m.Amount))
			if m.DueDate != nil {
				line += fmt.Sprintf(" (due %s)", LongDate(m.DueDate))
			}
			c.bullets = append(c.bullets, line)
			total = total.Add(m.Amount)
		}
		c.trailing = append(c.trailing, fmt.Sprintf("Total: %s.", FormatAmount(total)))
	}
	if term.PaymentMethod != nil && strings.TrimSpace(*term.PaymentMethod) != "" {
		c.trailing = append(c.trailing, fmt.Sprintf("Payments will be made by %s.", strings.TrimSpace(*term.PaymentMethod)))
	}
	return c
}

func revisionsText(n int) string {
	switch n {
	case 0:
		return "The fee does not include revisions. Any changes requested after delivery will be quoted separately."
	case 1:
		return "The fee includes 1 round of revisions. Additional revisions will be billed separately."
	}
	return fmt.Sprintf("The fee includes %d rounds of revisions. Additional revisions will be billed separately.", n)
}
