package enums

import "testing"

func TestParseAcceptsMembersOnly(t *testing.T) {
	if got, err := ParseLinkStatus("client_signed"); err != nil || got != LinkStatusClientSigned {
		t.Fatalf("ParseLinkStatus = %q, %v", got, err)
	}
	if _, err := ParsePaymentStructure("50/50"); err == nil {
		t.Fatal("expected unknown payment structure to fail")
	}
	if _, err := ParseOutboxEventType("order_created"); err == nil {
		t.Fatal("expected unknown event type to fail")
	}
}

func TestDurationUnitSingular(t *testing.T) {
	cases := map[DurationUnit]string{
		DurationUnitDays:   "day",
		DurationUnitWeeks:  "week",
		DurationUnitMonths: "month",
		"fortnights":       "fortnights",
	}
	for unit, want := range cases {
		if got := unit.Singular(); got != want {
			t.Fatalf("%s.Singular() = %q, want %q", unit, got, want)
		}
	}
}

func TestOutboxEventTypesIsACopy(t *testing.T) {
	types := OutboxEventTypes()
	types[0] = "tampered"
	if !EventAgreementCreated.IsValid() {
		t.Fatal("mutating the returned slice changed the enum")
	}
}
