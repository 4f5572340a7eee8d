package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/grana-app/grana/internal/domain"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "grana.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCollectionRoundTrip(t *testing.T) {
	s := open(t)

	in := []domain.Transaction{
		{
			ID:            "t1",
			Description:   "Mercado",
			Amount:        decimal.RequireFromString("123.45"),
			Type:          domain.TypeExpense,
			Date:          domain.MustDate("2025-03-02"),
			PaymentMethod: domain.PaymentPix,
		},
	}
	if err := SaveCollection(s, KeyTransactions, in); err != nil {
		t.Fatalf("SaveCollection: %v", err)
	}

	out, ok := LoadCollection[domain.Transaction](s, KeyTransactions)
	if !ok {
		t.Fatal("expected snapshot present")
	}
	if len(out) != 1 || out[0].ID != "t1" {
		t.Fatalf("unexpected collection: %+v", out)
	}
	if !out[0].Amount.Equal(in[0].Amount) {
		t.Errorf("amount = %s, want %s", out[0].Amount, in[0].Amount)
	}
	if out[0].Date != in[0].Date {
		t.Errorf("date = %s, want %s", out[0].Date, in[0].Date)
	}
}

func TestLoad_MissingKey(t *testing.T) {
	s := open(t)
	if _, ok := LoadCollection[domain.Bill](s, KeyBills); ok {
		t.Error("missing key should report absent")
	}
}

func TestLoad_MalformedIsAbsent(t *testing.T) {
	s := open(t)
	if err := s.SaveString(KeyGoals, `{not json`); err != nil {
		t.Fatalf("SaveString: %v", err)
	}
	if _, ok := LoadCollection[domain.Goal](s, KeyGoals); ok {
		t.Error("malformed snapshot should report absent, not fail")
	}
}

func TestSave_OverwritesWholeCollection(t *testing.T) {
	s := open(t)

	first := []domain.Bill{{ID: "b1", Name: "Luz", DueDay: 10}, {ID: "b2", Name: "Agua", DueDay: 12}}
	if err := SaveCollection(s, KeyBills, first); err != nil {
		t.Fatalf("SaveCollection: %v", err)
	}
	second := []domain.Bill{{ID: "b2", Name: "Agua", DueDay: 12}}
	if err := SaveCollection(s, KeyBills, second); err != nil {
		t.Fatalf("SaveCollection: %v", err)
	}

	out, ok := LoadCollection[domain.Bill](s, KeyBills)
	if !ok || len(out) != 1 || out[0].ID != "b2" {
		t.Fatalf("expected overwritten collection, got %+v", out)
	}
}

func TestSave_NilBecomesEmpty(t *testing.T) {
	s := open(t)
	if err := SaveCollection[domain.Payslip](s, KeyPayslips, nil); err != nil {
		t.Fatalf("SaveCollection: %v", err)
	}
	out, ok := LoadCollection[domain.Payslip](s, KeyPayslips)
	if !ok {
		t.Fatal("expected snapshot present")
	}
	if len(out) != 0 {
		t.Fatalf("expected empty collection, got %+v", out)
	}
}

func TestStringAndValueKeys(t *testing.T) {
	s := open(t)

	if err := s.SaveString(KeyAccountID, "acc-123"); err != nil {
		t.Fatalf("SaveString: %v", err)
	}
	got, ok := s.LoadString(KeyAccountID)
	if !ok || got != "acc-123" {
		t.Fatalf("LoadString = %q, %v", got, ok)
	}

	profile := domain.UserProfile{UserID: "u1", Name: "Ana", Email: "ana@example.com"}
	if err := SaveValue(s, KeyUserProfile, profile); err != nil {
		t.Fatalf("SaveValue: %v", err)
	}
	back, ok := LoadValue[domain.UserProfile](s, KeyUserProfile)
	if !ok || back != profile {
		t.Fatalf("LoadValue = %+v, %v", back, ok)
	}

	if err := s.Delete(KeyAccountID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.LoadString(KeyAccountID); ok {
		t.Error("deleted key should be absent")
	}
}
