package domain

import (
	"encoding/json"
	"testing"
)

func TestAddMonths(t *testing.T) {
	cases := []struct {
		name   string
		start  string
		months int
		want   string
	}{
		{"plain step", "2025-03-15", 1, "2025-04-15"},
		{"year boundary", "2025-12-10", 1, "2026-01-10"},
		{"jan 31 rolls over", "2025-01-31", 1, "2025-03-03"},
		{"may 31 to june", "2025-05-31", 1, "2025-07-01"},
		{"leap february kept", "2024-01-29", 1, "2024-02-29"},
		{"several months", "2025-01-10", 3, "2025-04-10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AddMonths(MustDate(tc.start), tc.months)
			if got != MustDate(tc.want) {
				t.Errorf("AddMonths(%s, %d) = %s, want %s", tc.start, tc.months, got, tc.want)
			}
		})
	}
}

func TestEpochMillis(t *testing.T) {
	if got := EpochMillis(MustDate("1970-01-01")); got != 0 {
		t.Errorf("epoch start = %d, want 0", got)
	}
	if got := EpochMillis(MustDate("1970-01-02")); got != 86400000 {
		t.Errorf("one day = %d, want 86400000", got)
	}
}

func TestOccurrenceID(t *testing.T) {
	got := OccurrenceID("rec-1", MustDate("1970-01-02"))
	if got != "rec-1-86400000" {
		t.Errorf("OccurrenceID = %q, want rec-1-86400000", got)
	}
}

func TestInstallmentID(t *testing.T) {
	if got := InstallmentID("p1", 3); got != "p1-3" {
		t.Errorf("InstallmentID = %q, want p1-3", got)
	}
}

func TestNormalizeTransaction(t *testing.T) {
	in := Transaction{ID: "t1", Description: "legacy"}
	out := NormalizeTransaction(in)
	if out.PaymentMethod != PaymentOutro {
		t.Errorf("empty payment method = %q, want %q", out.PaymentMethod, PaymentOutro)
	}

	in.PaymentMethod = PaymentPix
	out = NormalizeTransaction(in)
	if out.PaymentMethod != PaymentPix {
		t.Errorf("explicit payment method rewritten to %q", out.PaymentMethod)
	}
}

func TestTransactionJSONDateFormat(t *testing.T) {
	tx := Transaction{ID: "t1", Date: MustDate("2025-08-15")}
	raw, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["date"] != "2025-08-15" {
		t.Errorf("date serialized as %v, want 2025-08-15", decoded["date"])
	}
}
