package agreements

import (
	"testing"

	"github.com/angelmondragon/ledgerly-backend/pkg/enums"
)

func TestDeriveStatus(t *testing.T) {
	signed := enums.LinkStatusClientSigned
	pending := enums.LinkStatusPending
	expired := enums.LinkStatusExpired

	cases := []struct {
		name  string
		links []enums.LinkStatus
		want  enums.AgreementStatus
	}{
		{name: "no links", links: nil, want: enums.AgreementStatusDraft},
		{name: "one pending", links: []enums.LinkStatus{pending}, want: enums.AgreementStatusPending},
		{name: "one of two signed", links: []enums.LinkStatus{signed, pending}, want: enums.AgreementStatusPending},
		{name: "all signed", links: []enums.LinkStatus{signed, signed}, want: enums.AgreementStatusCompleted},
		{name: "expired outstanding", links: []enums.LinkStatus{signed, expired}, want: enums.AgreementStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStatus(tc.links); got != tc.want {
				t.Fatalf("DeriveStatus(%v) = %s, want %s", tc.links, got, tc.want)
			}
		})
	}
}

func TestDeriveStatusIgnoresOrder(t *testing.T) {
	a := DeriveStatus([]enums.LinkStatus{enums.LinkStatusPending, enums.LinkStatusClientSigned})
	b := DeriveStatus([]enums.LinkStatus{enums.LinkStatusClientSigned, enums.LinkStatusPending})
	if a != b {
		t.Fatalf("expected order independence, got %s and %s", a, b)
	}
}
