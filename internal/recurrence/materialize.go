// Package recurrence expands recurring transaction templates into concrete
// dated transactions up to a given day, idempotently.
package recurrence

import (
	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/grana-app/grana/internal/domain"
)

// Result is the outcome of one materialization run.
type Result struct {
	// Transactions is the merged, de-duplicated transaction collection.
	Transactions []domain.Transaction
	// Recurring is the template collection with advanced cursors.
	Recurring []domain.RecurringTransaction
	// Emitted counts newly materialized transactions.
	Emitted int
}

// dedupeKey identifies a transaction for duplicate detection: the id when one
// exists, otherwise description plus date. The fallback guards legacy records
// that predate the deterministic occurrence-id scheme.
func dedupeKey(id, description string, date civil.Date) string {
	if id != "" {
		return "id:" + id
	}
	return "dd:" + description + "|" + date.String()
}

// Materialize expands every template whose nextDueDate is on or before today
// into concrete transactions, advancing each cursor to the first date past
// today. It never emits a duplicate: an occurrence is skipped when an existing
// or already-staged transaction has the same id, or the same description and
// date. Cursors are written back unconditionally, which is what makes a
// re-run a no-op. Cursors never regress.
//
// This is meant to run exactly once per load, after hydration has completed.
func Materialize(log zerolog.Logger, today civil.Date, txs []domain.Transaction, recs []domain.RecurringTransaction) Result {
	byID := make(map[string]bool, len(txs))
	byDescDate := make(map[string]bool, len(txs))
	note := func(t domain.Transaction) {
		if t.ID != "" {
			byID[t.ID] = true
		}
		byDescDate["dd:"+t.Description+"|"+t.Date.String()] = true
	}
	for _, t := range txs {
		note(t)
	}

	var emitted []domain.Transaction
	outRecs := make([]domain.RecurringTransaction, len(recs))

	for i, rec := range recs {
		sched, ok := ScheduleFor(rec.Frequency)
		if !ok {
			log.Debug().Str("recurring_id", rec.ID).Str("frequency", string(rec.Frequency)).
				Msg("no schedule for frequency, skipping")
			outRecs[i] = rec
			continue
		}

		cursor := rec.NextDueDate
		for !cursor.After(today) {
			occID := domain.OccurrenceID(rec.ID, cursor)
			if byID[occID] || byDescDate["dd:"+rec.Description+"|"+cursor.String()] {
				cursor = sched.Next(cursor)
				continue
			}

			t := domain.Transaction{
				ID:            occID,
				Description:   rec.Description,
				Amount:        rec.Amount,
				Type:          rec.Type,
				Date:          cursor,
				Category:      rec.Category,
				Subcategory:   rec.Subcategory,
				PaymentMethod: domain.PaymentDebito,
				IsRecurring:   true,
			}
			emitted = append(emitted, t)
			note(t)

			cursor = sched.Next(cursor)
		}

		rec.NextDueDate = cursor
		outRecs[i] = rec
	}

	merged := Dedupe(append(append([]domain.Transaction{}, txs...), emitted...))
	if len(emitted) > 0 {
		log.Info().Int("emitted", len(emitted)).Msg("materialized recurring transactions")
	}
	return Result{Transactions: merged, Recurring: outRecs, Emitted: len(emitted)}
}

// Dedupe removes duplicate transactions, keeping the first occurrence in
// collection order. Identity is the id, or description+date for records
// without one.
func Dedupe(txs []domain.Transaction) []domain.Transaction {
	seen := make(map[string]bool, len(txs))
	out := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		k := dedupeKey(t.ID, t.Description, t.Date)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}
