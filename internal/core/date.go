package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Date is a calendar date with no time component. The zero value means
// "unset", which filters use for open bounds.
type Date struct {
	time.Time
}

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, ErrInvalidDate)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MonthKey returns the YYYY-MM key of the date's month.
func (d Date) MonthKey() string {
	return d.Format(monthLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// MarshalJSON renders the date as "YYYY-MM-DD" (empty string when unset).
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("unquote date: %w", ErrInvalidDate)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ValidMonthKey reports whether mk is a well-formed YYYY-MM key.
func ValidMonthKey(mk string) bool {
	_, _, err := ParseMonthKey(mk)
	return err == nil
}

// ParseMonthKey splits a YYYY-MM key into year and month.
func ParseMonthKey(mk string) (year, month int, err error) {
	if len(mk) != 7 || mk[4] != '-' {
		return 0, 0, fmt.Errorf("month key %q: %w", mk, ErrInvalidMonthKey)
	}
	year, err = strconv.Atoi(mk[:4])
	if err != nil {
		return 0, 0, fmt.Errorf("month key %q: %w", mk, ErrInvalidMonthKey)
	}
	month, err = strconv.Atoi(mk[5:])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("month key %q: %w", mk, ErrInvalidMonthKey)
	}
	return year, month, nil
}

// MonthKeyOf builds a YYYY-MM key from year and month.
func MonthKeyOf(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// PrevMonthKey returns the key of the month immediately before mk.
func PrevMonthKey(mk string) (string, error) {
	year, month, err := ParseMonthKey(mk)
	if err != nil {
		return "", err
	}
	month--
	if month == 0 {
		month = 12
		year--
	}
	return MonthKeyOf(year, month), nil
}

// MonthWindow returns n consecutive month keys ending at mk, in
// chronological order (oldest first). n must be at least 1.
func MonthWindow(mk string, n int) ([]string, error) {
	if _, _, err := ParseMonthKey(mk); err != nil {
		return nil, err
	}
	keys := make([]string, n)
	cur := mk
	for i := n - 1; i >= 0; i-- {
		keys[i] = cur
		if i > 0 {
			prev, err := PrevMonthKey(cur)
			if err != nil {
				return nil, err
			}
			cur = prev
		}
	}
	return keys, nil
}
