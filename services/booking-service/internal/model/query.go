package model

import "time"

// ListFilter narrows an appointment listing. Zero fields do not filter.
type ListFilter struct {
	TrainerID string
	MemberID  string
	Statuses  []Status
	From      time.Time
	To        time.Time
	Sort      SortField
	Desc      bool
	Limit     int
}

// Matches applies the filter's predicates to a single appointment. From/To select appointments
// starting in [From, To).
func (f ListFilter) Matches(a Appointment) bool {
	if f.TrainerID != "" && a.TrainerID != f.TrainerID {
		return false
	}
	if f.MemberID != "" && a.MemberID != f.MemberID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && a.Start.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.Start.Before(f.To) {
		return false
	}
	return true
}

// Stats is the dashboard summary: totals per status and per trainer.
type Stats struct {
	Total     int            `json:"total"`
	ByStatus  map[Status]int `json:"by_status"`
	ByTrainer map[string]int `json:"by_trainer"`
	Upcoming  int            `json:"upcoming"`
}

func NewStats() Stats {
	s := Stats{ByStatus: map[Status]int{}, ByTrainer: map[string]int{}}
	for _, st := range allStatuses {
		s.ByStatus[st] = 0
	}
	return s
}

// Add counts one appointment. Upcoming counts active appointments starting after now.
func (s *Stats) Add(a Appointment, now time.Time) {
	s.Total++
	s.ByStatus[a.Status]++
	s.ByTrainer[a.TrainerID]++
	if a.Status.Active() && a.Start.After(now) {
		s.Upcoming++
	}
}
