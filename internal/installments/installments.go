// Package installments converts between a single purchase transaction and a
// dated series of N installment members sharing a purchase id, preserving the
// total value to the cent.
package installments

import (
	"fmt"
	"regexp"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/grana-app/grana/internal/domain"
)

// seriesSuffix matches the " (i/N)" label appended to series member
// descriptions, anchored at end of string.
var seriesSuffix = regexp.MustCompile(` \(\d+/\d+\)$`)

var oneHundred = decimal.NewFromInt(100)

// StripSeriesSuffix removes a trailing " (i/N)" label from a description.
// The match is purely textual: a hand-typed description that happens to end in
// " (2/5)" is misparsed. Known limitation, carried as-is.
func StripSeriesSuffix(description string) string {
	return seriesSuffix.ReplaceAllString(description, "")
}

// memberDescription labels one series member, e.g. "Notebook (2/10)".
func memberDescription(base string, current, total int) string {
	return fmt.Sprintf("%s (%d/%d)", base, current, total)
}

// Split expands tx into n dated installment members. Only expenses split, and
// n must be at least 2.
//
// Rounding policy: totalCents = round(amount x 100); every member but the last
// gets floor(totalCents/n); the last member absorbs the remainder. Member i
// (0-indexed) is dated tx.Date + i calendar months, with native day-of-month
// rollover on short target months.
func Split(tx domain.Transaction, n int) ([]domain.Transaction, error) {
	if n < 2 {
		return nil, fmt.Errorf("Split: installment count must be > 1, got %d", n)
	}
	if tx.Type != domain.TypeExpense {
		return nil, fmt.Errorf("Split: only expenses can be split, got %s", tx.Type)
	}

	purchaseID := tx.ID
	if purchaseID == "" {
		purchaseID = uuid.New().String()
	}
	base := StripSeriesSuffix(tx.Description)

	totalCents := tx.Amount.Mul(oneHundred).Round(0).IntPart()
	baseCents := totalCents / int64(n)
	lastCents := totalCents - baseCents*int64(n-1)

	members := make([]domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		cents := baseCents
		if i == n-1 {
			cents = lastCents
		}
		member := tx
		member.ID = domain.InstallmentID(purchaseID, i+1)
		member.Description = memberDescription(base, i+1, n)
		member.Amount = decimal.New(cents, -2)
		member.Date = domain.AddMonths(tx.Date, i)
		member.InstallmentDetails = &domain.InstallmentDetails{
			PurchaseID:  purchaseID,
			Current:     i + 1,
			Total:       n,
			TotalAmount: tx.Amount,
		}
		members = append(members, member)
	}
	return members, nil
}

// MergeSeries collapses every member of purchaseID back into a single
// transaction carrying the combined total and the stripped base description.
// The single replaces the first member in collection order; the remaining
// members are dropped. A purchase id with no members leaves txs unchanged.
func MergeSeries(txs []domain.Transaction, purchaseID string) []domain.Transaction {
	var first *domain.Transaction
	for i := range txs {
		d := txs[i].InstallmentDetails
		if d != nil && d.PurchaseID == purchaseID {
			if first == nil || d.Current < first.InstallmentDetails.Current {
				first = &txs[i]
			}
		}
	}
	if first == nil {
		return txs
	}

	single := *first
	single.ID = purchaseID
	single.Description = StripSeriesSuffix(first.Description)
	single.Amount = first.InstallmentDetails.TotalAmount
	single.Date = seriesStartDate(txs, purchaseID)
	single.InstallmentDetails = nil

	out := make([]domain.Transaction, 0, len(txs))
	inserted := false
	for i := range txs {
		d := txs[i].InstallmentDetails
		if d != nil && d.PurchaseID == purchaseID {
			if !inserted {
				out = append(out, single)
				inserted = true
			}
			continue
		}
		out = append(out, txs[i])
	}
	return out
}

// EditSeries rewrites the transaction (or whole series) that existingID
// belongs to. The old series, if any, is removed first; the result is derived
// fresh from updated: a series of newN when newN > 1 and the type is EXPENSE,
// otherwise a single transaction. The purchase id is kept stable across the
// rewrite so member ids stay deterministic.
func EditSeries(txs []domain.Transaction, existingID string, updated domain.Transaction, newN int) ([]domain.Transaction, error) {
	idx := -1
	for i := range txs {
		if txs[i].ID == existingID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("EditSeries: transaction %q not found", existingID)
	}

	existing := txs[idx]
	keepID := existing.ID
	remaining := txs
	insertAt := idx

	if d := existing.InstallmentDetails; d != nil {
		keepID = d.PurchaseID
		insertAt = -1
		remaining = make([]domain.Transaction, 0, len(txs))
		for i := range txs {
			md := txs[i].InstallmentDetails
			if md != nil && md.PurchaseID == d.PurchaseID {
				if insertAt == -1 {
					insertAt = len(remaining)
				}
				continue
			}
			remaining = append(remaining, txs[i])
		}
	} else {
		remaining = append(append([]domain.Transaction{}, txs[:idx]...), txs[idx+1:]...)
	}

	updated.ID = keepID
	updated.Description = StripSeriesSuffix(updated.Description)
	updated.InstallmentDetails = nil

	var replacement []domain.Transaction
	if newN > 1 && updated.Type == domain.TypeExpense {
		series, err := Split(updated, newN)
		if err != nil {
			return nil, fmt.Errorf("EditSeries: %w", err)
		}
		replacement = series
	} else {
		replacement = []domain.Transaction{updated}
	}

	out := make([]domain.Transaction, 0, len(remaining)+len(replacement))
	out = append(out, remaining[:insertAt]...)
	out = append(out, replacement...)
	out = append(out, remaining[insertAt:]...)
	return out, nil
}

// seriesStartDate is the earliest member date, i.e. the purchase date.
func seriesStartDate(txs []domain.Transaction, purchaseID string) (start civil.Date) {
	found := false
	for i := range txs {
		d := txs[i].InstallmentDetails
		if d == nil || d.PurchaseID != purchaseID {
			continue
		}
		if !found || txs[i].Date.Before(start) {
			start = txs[i].Date
			found = true
		}
	}
	return start
}
