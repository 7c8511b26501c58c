package model

import (
	"fmt"
	"slices"
	"strings"
)

type SortField string

const (
	SortByStart     SortField = "start"
	SortByCreatedAt SortField = "created_at"
	SortByStatus    SortField = "status"
	SortByTrainer   SortField = "trainer"
	SortByService   SortField = "service"
)

// comparators is the closed set of sortable fields. Ties fall through to start then id.
var comparators = map[SortField]func(a, b Appointment) int{
	SortByStart:     func(a, b Appointment) int { return a.Start.Compare(b.Start) },
	SortByCreatedAt: func(a, b Appointment) int { return a.CreatedAt.Compare(b.CreatedAt) },
	SortByStatus:    func(a, b Appointment) int { return strings.Compare(string(a.Status), string(b.Status)) },
	SortByTrainer:   func(a, b Appointment) int { return strings.Compare(a.TrainerID, b.TrainerID) },
	SortByService:   func(a, b Appointment) int { return strings.Compare(a.ServiceID, b.ServiceID) },
}

func ParseSortField(raw string) (SortField, error) {
	if raw == "" {
		return SortByStart, nil
	}
	f := SortField(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := comparators[f]; !ok {
		return "", fmt.Errorf("unknown sort field %q", raw)
	}
	return f, nil
}

// SortAppointments sorts in place by field. Unknown fields sort by start.
func SortAppointments(appts []Appointment, field SortField, desc bool) {
	cmp, ok := comparators[field]
	if !ok {
		cmp = comparators[SortByStart]
	}
	slices.SortStableFunc(appts, func(a, b Appointment) int {
		c := cmp(a, b)
		if c == 0 {
			c = a.Start.Compare(b.Start)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
}
