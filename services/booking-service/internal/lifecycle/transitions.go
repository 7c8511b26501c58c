package lifecycle

import "github.com/md-rashed-zaman/fitbook/services/booking-service/internal/model"

// Action is a status-changing operation on an existing appointment.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "no_show"
)

type rule struct {
	to         model.Status
	guard      func(from model.Status) error
	notePrefix string
}

var rules = map[Action]rule{
	ActionApprove:  {to: model.StatusApproved, guard: only(model.StatusPending, model.ErrAlreadyResolved)},
	ActionReject:   {to: model.StatusRejected, guard: notCompleted, notePrefix: "Rejection reason: "},
	ActionCancel:   {to: model.StatusCancelled, guard: notCompleted, notePrefix: "Cancellation reason: "},
	ActionComplete: {to: model.StatusCompleted, guard: only(model.StatusApproved, model.ErrNotApproved)},
	ActionNoShow:   {to: model.StatusNoShow, guard: only(model.StatusApproved, model.ErrNotApproved)},
}

func only(from model.Status, err error) func(model.Status) error {
	return func(s model.Status) error {
		if s != from {
			return err
		}
		return nil
	}
}

func notCompleted(s model.Status) error {
	if s == model.StatusCompleted {
		return model.ErrAlreadyCompleted
	}
	return nil
}

// Allowed reports whether act may be applied to an appointment in status from.
func Allowed(act Action, from model.Status) bool {
	r, ok := rules[act]
	return ok && r.guard(from) == nil
}

var actionOrder = []Action{ActionApprove, ActionReject, ActionCancel, ActionComplete, ActionNoShow}

// AllowedActions lists the actions permitted from status, in a stable order.
func AllowedActions(from model.Status) []Action {
	out := make([]Action, 0, len(actionOrder))
	for _, act := range actionOrder {
		if Allowed(act, from) {
			out = append(out, act)
		}
	}
	return out
}

func noteFor(r rule, current, reason string) string {
	if r.notePrefix == "" || reason == "" {
		return current
	}
	return r.notePrefix + reason
}
