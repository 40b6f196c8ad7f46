package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestOptionalUnmarshalDistinguishesAbsentNullAndValue(t *testing.T) {
	type payload struct {
		Count Optional[int] `json:"count"`
	}

	var got payload
	if err := json.Unmarshal([]byte(`{"count": 3}`), &got); err != nil {
		t.Fatalf("unmarshal value: %v", err)
	}
	if v, ok := got.Count.Get(); !ok || v != 3 {
		t.Fatalf("expected 3, got %+v", got.Count)
	}

	got = payload{}
	if err := json.Unmarshal([]byte(`{"count": null}`), &got); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !got.Count.IsNull() {
		t.Fatalf("expected explicit null, got %+v", got.Count)
	}

	got = payload{}
	if err := json.Unmarshal([]byte(`{}`), &got); err != nil {
		t.Fatalf("unmarshal missing: %v", err)
	}
	if got.Count.Set {
		t.Fatalf("expected absent field, got %+v", got.Count)
	}
}

func TestOptionalRejectsWrongType(t *testing.T) {
	var opt Optional[int]
	if err := json.Unmarshal([]byte(`"three"`), &opt); err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestSomeAndNullHelpers(t *testing.T) {
	if v, ok := Some("x").Get(); !ok || v != "x" {
		t.Fatalf("Some should carry its value")
	}
	if !Null[string]().IsNull() {
		t.Fatalf("Null should be an explicit null")
	}
}

func TestDateRoundTripsCalendarDay(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2026-03-09"`), &d); err != nil {
		t.Fatalf("unmarshal date: %v", err)
	}
	if d.Year() != 2026 || d.Month() != time.March || d.Day() != 9 {
		t.Fatalf("unexpected date %v", d.Time)
	}
	if err := json.Unmarshal([]byte(`"09/03/2026"`), &d); err == nil {
		t.Fatal("expected invalid layout to fail")
	}

	out, err := json.Marshal(NewDate(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)))
	if err != nil {
		t.Fatalf("marshal date: %v", err)
	}
	if string(out) != `"2026-01-02"` {
		t.Fatalf("unexpected encoding %s", out)
	}
}
