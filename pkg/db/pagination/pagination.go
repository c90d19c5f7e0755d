package pagination

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 25
)

// FlexInt accepts a JSON number or a numeric string. Anything else decodes
// to zero, which the parse helpers treat as absent.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = 0
			return nil
		}
		raw = s
	}

	*f = FlexInt(parseInt(raw))
	return nil
}

func (f FlexInt) Int() int { return int(f) }

// ParsePage returns a 1-based page, falling back to DefaultPage.
func ParsePage(raw string) int {
	return withDefault(parseInt(raw), DefaultPage)
}

// ParseLimit returns a positive page size, falling back to DefaultLimit.
func ParseLimit(raw string) int {
	return withDefault(parseInt(raw), DefaultLimit)
}

func PageOrDefault(v int) int  { return withDefault(v, DefaultPage) }
func LimitOrDefault(v int) int { return withDefault(v, DefaultLimit) }

func withDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseInt(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	// "2.0" style numbers still count; fractions truncate
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f >= 1 && f < 1<<31 {
		return int(f)
	}
	return 0
}

// Offset is the number of rows to skip for a 1-based page. It saturates at
// math.MaxInt so a huge page lands past the end instead of wrapping.
func Offset(page, limit int) int {
	if page <= 1 || limit <= 0 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

// TotalPages is ceil(total/limit), zero when there are no rows.
func TotalPages(total int64, limit int) int64 {
	if total <= 0 || limit <= 0 {
		return 0
	}
	l := int64(limit)
	return (total + l - 1) / l
}

type Page[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

func NewPage[T any](data []T, page, limit int, total int64) Page[T] {
	if data == nil {
		data = []T{}
	}
	return Page[T]{
		Data:       data,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: TotalPages(total, limit),
	}
}
