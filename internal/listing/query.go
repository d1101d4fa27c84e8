package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout   = "2006-01-02"
	MaxPageLimit = 100
)

var ErrInvalidDate = errors.New("invalid date")

// Query is what a fetch callback receives. From and To are a zero-based,
// inclusive row range.
type Query struct {
	From   int
	To     int
	Search string
	Date   string
}

// Limit is the number of rows in the range.
func (q Query) Limit() int {
	return q.To - q.From + 1
}

// Offset is the first row of the range.
func (q Query) Offset() int {
	return q.From
}

type Result[T any] struct {
	Data  []T
	Count int
}

type FetchFunc[T any] func(ctx context.Context, q Query) (Result[T], error)

type RenderFunc[T any] func(item T) string

// TotalPages is ceil(total/size), never less than 1.
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// DayRange expands an ISO date into [00:00:00, 23:59:59] of that day in loc.
func DayRange(date string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, date, err)
	}
	end := day.Add(24*time.Hour - time.Second)
	return day, end, nil
}

// ParseQuery turns REST-style page/limit parameters into a row range,
// clamping out-of-range values the same way every list endpoint does.
func ParseQuery(page, limit int, search, date string) Query {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > MaxPageLimit {
		limit = DefaultPageSize
	}
	from := (page - 1) * limit
	return Query{
		From:   from,
		To:     from + limit - 1,
		Search: strings.TrimSpace(search),
		Date:   strings.TrimSpace(date),
	}
}

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalData  int `json:"total_data"`
	TotalPages int `json:"total_pages"`
}

func NewMeta(q Query, total int) Meta {
	limit := q.Limit()
	return Meta{
		Page:       q.From/limit + 1,
		Limit:      limit,
		TotalData:  total,
		TotalPages: TotalPages(total, limit),
	}
}

// LikePattern wraps a search term for a SQL LIKE comparison.
func LikePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}
