package query

import (
	"strings"
	"time"

	"github.com/smallbiznis/alankar/pkg/db/pagination"
)

type Criteria struct {
	Term      string
	StartDate *time.Time
	EndDate   *time.Time
	ID        string
	Page      int
	Limit     int

	// IncludeOrphans keeps bills without a customer when no term is set.
	IncludeOrphans bool
}

// PointLookup reports whether the id short-circuit applies.
func (c Criteria) PointLookup() bool {
	return strings.TrimSpace(c.ID) != ""
}

// Normalize applies page and limit defaults and trims the term.
func (c Criteria) Normalize() Criteria {
	c.Term = strings.TrimSpace(c.Term)
	c.ID = strings.TrimSpace(c.ID)
	c.Page = pagination.PageOrDefault(c.Page)
	c.Limit = pagination.LimitOrDefault(c.Limit)
	return c
}

// Build returns the data pipeline: filters, then sort and page window.
func Build(c Criteria) []Stage {
	c = c.Normalize()
	stages := filterStages(c)
	return append(stages,
		Stage{Kind: KindSort},
		Stage{Kind: KindSkip, Skip: pagination.Offset(c.Page, c.Limit)},
		Stage{Kind: KindLimit, Limit: c.Limit},
	)
}

// BuildCount returns the same filters terminated by a count.
func BuildCount(c Criteria) []Stage {
	c = c.Normalize()
	return append(filterStages(c), Stage{Kind: KindCount})
}

func filterStages(c Criteria) []Stage {
	stages := []Stage{{
		Kind: KindJoin,
		Join: Join{Required: !c.IncludeOrphans || c.Term != ""},
	}}

	if c.StartDate != nil || c.EndDate != nil {
		stages = append(stages, Stage{
			Kind:      KindDateRangeFilter,
			DateRange: DateRange{From: c.StartDate, To: c.EndDate},
		})
	}

	if c.Term != "" {
		stages = append(stages, Stage{
			Kind: KindTextSearchFilter,
			Text: TextSearch{Term: c.Term, PhonePrefix: IsDigits(c.Term)},
		})
	}

	return stages
}

// IsDigits reports whether s is non-empty and made only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
