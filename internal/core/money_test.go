package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		120050: "1200.50",
		-250:   "-2.50",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Fatalf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	var tx struct {
		Amount Money `json:"amount"`
	}
	for in, want := range map[string]int64{
		`{"amount": 1200}`:     120000,
		`{"amount": 12.5}`:     1250,
		`{"amount": "99,99"}`:  9999,
		`{"amount": 0}`:        0,
		`{"amount": 1.5e2}`:    15000,
		`{"amount": null}`:     0,
		`{"amount": -4.00}`:    -400,
		`{"amount": "-0,5"}`:   -50,
		`{"amount": -1.5e1}`:   -1500,
	} {
		if err := json.Unmarshal([]byte(in), &tx); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if tx.Amount.Cents != want {
			t.Fatalf("%s: got %d cents, want %d", in, tx.Amount.Cents, want)
		}
	}

	for _, bad := range []string{`{"amount": --5}`, `{"amount": "-"}`, `{"amount": "-+1"}`, `{"amount": "1-"}`} {
		if err := json.Unmarshal([]byte(bad), &tx); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}

	out, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Money{Cents: 380000}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"amount":3800.00}` {
		t.Fatalf("unexpected encoding %s", out)
	}
}

func TestFromUnits(t *testing.T) {
	if got := FromUnits(0.29).Cents; got != 29 {
		t.Fatalf("FromUnits(0.29) = %d", got)
	}
	if got := FromUnits(5000).Cents; got != 500000 {
		t.Fatalf("FromUnits(5000) = %d", got)
	}
}

func TestMoneyJSONSignedRoundTrip(t *testing.T) {
	for _, cents := range []int64{-400, -5, -120050, 0, 99} {
		raw, err := json.Marshal(Money{Cents: cents})
		if err != nil {
			t.Fatalf("marshal %d: %v", cents, err)
		}
		var back Money
		if err := json.Unmarshal(raw, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if back.Cents != cents {
			t.Fatalf("%d encoded as %s decoded to %d", cents, raw, back.Cents)
		}
	}
}
