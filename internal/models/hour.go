package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Hour is a whole-hour booking boundary on a 24-hour clock.
type Hour int

const (
	// FirstHour is the earliest bookable boundary.
	FirstHour Hour = 4
	// LastHour is the closing boundary; nothing can be booked past it.
	LastHour Hour = 23
)

// NewHour validates v and returns it as an Hour.
func NewHour(v int) (Hour, error) {
	h := Hour(v)
	if !h.Valid() {
		return 0, fmt.Errorf("hour %d outside %d..%d", v, FirstHour, LastHour)
	}
	return h, nil
}

// ParseHour reads "9", "09" or "09:00".
func ParseHour(raw string) (Hour, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, ":00")
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse hour %q: %w", raw, err)
	}
	return NewHour(v)
}

// Valid reports whether h lies in FirstHour..LastHour.
func (h Hour) Valid() bool {
	return h >= FirstHour && h <= LastHour
}

// Compare returns -1, 0 or 1.
func (h Hour) Compare(other Hour) int {
	switch {
	case h < other:
		return -1
	case h > other:
		return 1
	}
	return 0
}

// Add offsets h by n hours without range checks.
func (h Hour) Add(n int) Hour {
	return h + Hour(n)
}

func (h Hour) String() string {
	return fmt.Sprintf("%02d:00", int(h))
}
