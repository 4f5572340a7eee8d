package recurrence

import (
	"cloud.google.com/go/civil"

	"github.com/grana-app/grana/internal/domain"
)

// Schedule steps a due date forward by one period.
type Schedule interface {
	Next(d civil.Date) civil.Date
}

type monthly struct{}

func (monthly) Next(d civil.Date) civil.Date { return domain.AddMonths(d, 1) }

// schedules maps the frequencies the materializer knows how to expand.
// Templates with any other frequency are skipped and their cursor left
// untouched. New frequencies register here without touching the core loop.
var schedules = map[domain.Frequency]Schedule{
	domain.FrequencyMonthly: monthly{},
}

// ScheduleFor returns the schedule for a frequency, if one is registered.
func ScheduleFor(f domain.Frequency) (Schedule, bool) {
	s, ok := schedules[f]
	return s, ok
}
