package conflict

import (
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"
)

// Filter narrows which booked appointments count as peers.
type Filter struct {
	// ExcludeID drops one appointment, typically the one being edited or approved.
	ExcludeID string
	// Statuses restricts peers to these statuses. Empty means every active status.
	Statuses []model.Status
}

// ApprovedOnly is the admission rule used by approval: only already approved peers block.
func ApprovedOnly(excludeID string) Filter {
	return Filter{ExcludeID: excludeID, Statuses: []model.Status{model.StatusApproved}}
}

func (f Filter) admits(a model.Appointment) bool {
	if f.ExcludeID != "" && a.ID == f.ExcludeID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if a.Status == s {
			return true
		}
	}
	return false
}

// Snapshot is a trainer's active appointments at load time. End always holds the effective
// end, with the fallback already applied.
type Snapshot struct {
	TrainerID string
	booked    []model.Appointment
}

func (s *Snapshot) Len() int {
	return len(s.booked)
}

// Collisions returns every admitted appointment overlapping candidate, in start order.
func (s *Snapshot) Collisions(candidate calendar.Interval, f Filter) []model.Appointment {
	out := []model.Appointment{}
	for _, a := range s.booked {
		if !a.Start.Before(candidate.End) {
			break
		}
		if !f.admits(a) {
			continue
		}
		if calendar.Overlaps(candidate, a.Interval()) {
			out = append(out, a)
		}
	}
	return out
}

// Free reports whether candidate collides with nothing admitted by f.
func (s *Snapshot) Free(candidate calendar.Interval, f Filter) bool {
	for _, a := range s.booked {
		if !a.Start.Before(candidate.End) {
			return true
		}
		if f.admits(a) && calendar.Overlaps(candidate, a.Interval()) {
			return false
		}
	}
	return true
}
