// Package reports aggregates the corpus into dashboard summaries. Every
// function is pure over the contracts it is given.
package reports

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/JaimeStill/covenant/internal/corpus"
)

// DefaultHorizon is the expiring-contracts window in days.
const DefaultHorizon = 90

// Report is the dashboard reporting view.
type Report struct {
	Total               int                       `json:"total"`
	StatusSummary       map[corpus.Status]int     `json:"status_summary"`
	RiskSummary         map[corpus.Risk]int       `json:"risk_summary"`
	StatusPercent       map[corpus.Status]float64 `json:"status_percent"`
	RiskPercent         map[corpus.Risk]float64   `json:"risk_percent"`
	UpcomingExpirations []corpus.Contract         `json:"upcoming_expirations"`
	HorizonDays         int                       `json:"horizon_days"`
	GeneratedAt         time.Time                 `json:"generated_at"`
}

// Build computes the full report as of now.
func Build(contracts []corpus.Contract, now time.Time, days int) Report {
	if days <= 0 {
		days = DefaultHorizon
	}
	status := StatusSummary(contracts)
	risk := RiskSummary(contracts)
	return Report{
		Total:               len(contracts),
		StatusSummary:       status,
		RiskSummary:         risk,
		StatusPercent:       percentages(status, len(contracts)),
		RiskPercent:         percentages(risk, len(contracts)),
		UpcomingExpirations: ExpiringWithin(contracts, now, days),
		HorizonDays:         days,
		GeneratedAt:         now.UTC(),
	}
}

// StatusSummary counts contracts per status. Every status is present.
func StatusSummary(contracts []corpus.Contract) map[corpus.Status]int {
	return summarize(corpus.Statuses(), contracts, func(c corpus.Contract) corpus.Status { return c.Status })
}

// RiskSummary counts contracts per risk level. Every level is present.
func RiskSummary(contracts []corpus.Contract) map[corpus.Risk]int {
	return summarize(corpus.Risks(), contracts, func(c corpus.Contract) corpus.Risk { return c.Risk })
}

func summarize[K comparable](keys []K, contracts []corpus.Contract, key func(corpus.Contract) K) map[K]int {
	out := make(map[K]int, len(keys))
	for _, k := range keys {
		out[k] = 0
	}
	for _, c := range contracts {
		if _, ok := out[key(c)]; ok {
			out[key(c)]++
		}
	}
	return out
}

// ExpiringWithin returns the contracts expiring strictly after now and
// strictly before now plus days calendar days, soonest first with ties
// broken by name then id. Both bounds are exclusive: a contract expiring
// exactly days from now is outside the window even though an inclusive
// "within days" reading would count it.
func ExpiringWithin(contracts []corpus.Contract, now time.Time, days int) []corpus.Contract {
	horizon := now.AddDate(0, 0, days)
	out := make([]corpus.Contract, 0)
	for _, c := range contracts {
		if c.ExpiryDate.After(now) && c.ExpiryDate.Before(horizon) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b corpus.Contract) int {
		if c := a.ExpiryDate.Compare(b.ExpiryDate); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// Percentage returns value as a percentage of total rounded to one
// decimal, or 0 when total is 0.
func Percentage(value, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(value)/float64(total)*1000) / 10
}

func percentages[K comparable](counts map[K]int, total int) map[K]float64 {
	out := make(map[K]float64, len(counts))
	for k, v := range counts {
		out[k] = Percentage(v, total)
	}
	return out
}
