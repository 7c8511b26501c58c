package model

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

var allStatuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled, StatusNoShow}

// ParseStatus is case-insensitive and accepts "no-show" as well as "no_show".
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	for _, known := range allStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Active statuses block the trainer's time. Cancelled, Rejected and NoShow do not.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// Deletable statuses may be physically removed.
func (s Status) Deletable() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }
