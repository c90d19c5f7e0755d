// Package query turns bill search criteria into an ordered list of typed
// stages. The repository interprets the list; nothing here touches the store.
package query

import "time"

type Kind int

const (
	KindJoin Kind = iota + 1
	KindDateRangeFilter
	KindTextSearchFilter
	KindSort
	KindSkip
	KindLimit
	KindCount
)

func (k Kind) String() string {
	switch k {
	case KindJoin:
		return "join"
	case KindDateRangeFilter:
		return "date_range_filter"
	case KindTextSearchFilter:
		return "text_search_filter"
	case KindSort:
		return "sort"
	case KindSkip:
		return "skip"
	case KindLimit:
		return "limit"
	case KindCount:
		return "count"
	}
	return "unknown"
}

// Stage is a tagged union; only the field matching Kind is meaningful.
type Stage struct {
	Kind      Kind
	Join      Join
	DateRange DateRange
	Text      TextSearch
	Skip      int
	Limit     int
}

// Join attaches customers to bills. Required drops bills whose customer
// reference resolves to nothing.
type Join struct {
	Required bool
}

// DateRange bounds bills.created_at inclusively. Nil bounds are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// TextSearch matches customer name or address by substring, and phone by
// prefix when PhonePrefix is set.
type TextSearch struct {
	Term        string
	PhonePrefix bool
}
