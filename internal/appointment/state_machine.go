package appointment

import (
	"slices"
	"strings"
	"time"

	"github.com/hackgods/equine-appointment-scheduling/internal/schedule"
)

// MinReportLength is the shortest accepted visit report, in characters.
const MinReportLength = 10

// Payload carries the optional arguments of an action.
type Payload struct {
	MainSlot         *time.Time  // reschedule actions
	AlternativeSlots []time.Time // reschedule actions
	SelectedSlot     *time.Time  // accept: pick one of the owner's proposed slots
	Report           string      // attach_report
}

type transitionKey struct {
	from   AppointmentStatus
	role   Role
	action Action
}

type effect func(a *Appointment, p Payload, now time.Time) error

type rule struct {
	to     AppointmentStatus
	effect effect
}

// transitions is the complete table. Whoever proposes a new slot leaves the
// appointment in the status the other party acts on: an OWNER proposal lands
// in pending (PRO answers), a PRO proposal in rescheduled (OWNER answers).
var transitions = map[transitionKey]rule{
	{StatusPending, RolePro, ActionAccept}:            {StatusConfirmed, confirmSlot},
	{StatusPending, RolePro, ActionReject}:            {StatusRejected, nil},
	{StatusPending, RolePro, ActionProposeReschedule}: {StatusRescheduled, moveSlot},
	{StatusPending, RoleOwner, ActionWithdraw}:        {StatusCanceled, nil},

	{StatusRescheduled, RoleOwner, ActionAcceptReschedule}: {StatusConfirmed, confirmProposed},
	{StatusRescheduled, RoleOwner, ActionRejectReschedule}: {StatusRejected, nil},
	{StatusRescheduled, RolePro, ActionWithdrawReschedule}: {StatusConfirmed, revertSlot},

	{StatusConfirmed, RoleOwner, ActionRequestReschedule}: {StatusPending, moveSlot},
	{StatusConfirmed, RolePro, ActionRequestReschedule}:   {StatusRescheduled, moveSlot},
	{StatusConfirmed, RoleOwner, ActionCancel}:            {StatusCanceled, nil},
	{StatusConfirmed, RolePro, ActionCancel}:              {StatusCanceled, nil},
	{StatusConfirmed, RoleSystem, ActionElapse}:           {StatusCompleted, requireElapsed},

	{StatusCompleted, RolePro, ActionAttachReport}: {StatusCompleted, attachReport},
}

// Apply computes the appointment that results from actor performing action.
// It never mutates a. changed is false only when SYSTEM re-applies elapse to
// an already completed appointment.
func Apply(a Appointment, actor Actor, action Action, p Payload, now time.Time) (next Appointment, changed bool, err error) {
	if err := checkParty(&a, actor); err != nil {
		return a, false, err
	}

	if action == ActionElapse && a.Status == StatusCompleted && actor.Role == RoleSystem {
		return a, false, nil
	}

	r, ok := transitions[transitionKey{a.Status, actor.Role, action}]
	if !ok {
		return a, false, &InvalidTransitionError{From: a.Status, Action: action, Role: actor.Role}
	}

	next = a.clone()
	if r.effect != nil {
		if err := r.effect(&next, p, now); err != nil {
			return a, false, err
		}
	}

	next.Status = r.to
	next.UpdatedAt = now
	return next, true, nil
}

// Allowed lists the actions role may take on an appointment in status s.
func Allowed(s AppointmentStatus, role Role) []Action {
	var out []Action
	for k := range transitions {
		if k.from == s && k.role == role {
			out = append(out, k.action)
		}
	}
	slices.Sort(out)
	return out
}

func checkParty(a *Appointment, actor Actor) error {
	switch actor.Role {
	case RolePro:
		if actor.UserID != a.ProID {
			return ErrNotParty
		}
	case RoleOwner:
		if actor.UserID != a.OwnerID {
			return ErrNotParty
		}
	case RoleSystem:
	default:
		return ErrNotParty
	}
	return nil
}

func confirmSlot(a *Appointment, p Payload, _ time.Time) error {
	if p.SelectedSlot != nil {
		picked := p.SelectedSlot.UTC()
		if !slices.ContainsFunc(a.Slots(), picked.Equal) {
			return invalid("selected_slot", "must be the proposed slot or one of the alternatives")
		}
		a.MainSlot = picked
	}
	a.AlternativeSlots = nil
	confirmed := a.MainSlot
	a.ConfirmedSlot = &confirmed
	return nil
}

// confirmProposed keeps the main slot as proposed by the PRO.
func confirmProposed(a *Appointment, _ Payload, now time.Time) error {
	return confirmSlot(a, Payload{}, now)
}

func moveSlot(a *Appointment, p Payload, now time.Time) error {
	if p.MainSlot == nil {
		return invalid("main_slot", "a new slot is required to reschedule")
	}
	main := p.MainSlot.UTC()
	alts, err := validateSlots(main, p.AlternativeSlots, now)
	if err != nil {
		return err
	}
	a.MainSlot = main
	a.AlternativeSlots = alts
	return nil
}

func revertSlot(a *Appointment, _ Payload, _ time.Time) error {
	if a.ConfirmedSlot == nil {
		return &InvalidTransitionError{From: a.Status, Action: ActionWithdrawReschedule, Role: RolePro}
	}
	a.MainSlot = *a.ConfirmedSlot
	a.AlternativeSlots = nil
	return nil
}

func requireElapsed(a *Appointment, _ Payload, now time.Time) error {
	if !a.EndsAt().Before(now) {
		return invalid("main_slot", "the visit has not ended yet")
	}
	return nil
}

func attachReport(a *Appointment, p Payload, now time.Time) error {
	text := strings.TrimSpace(p.Report)
	if len([]rune(text)) < MinReportLength {
		return invalid("report", "must be at least 10 characters")
	}
	a.Report = &text
	a.ReportUpdatedAt = &now
	return nil
}

// validateSlots applies the lead-time rule to the main slot and every
// alternative and returns the alternatives normalised to UTC.
func validateSlots(main time.Time, alts []time.Time, now time.Time) ([]time.Time, error) {
	if main.IsZero() {
		return nil, invalid("main_slot", "is required")
	}
	if !schedule.LeadTimeSatisfied(main, now) {
		return nil, invalid("main_slot", "appointments must be booked at least one day in advance; pick a later date")
	}

	out := make([]time.Time, 0, len(alts))
	for _, alt := range alts {
		alt = alt.UTC()
		if !schedule.LeadTimeSatisfied(alt, now) {
			return nil, invalid("alternative_slots", "every alternative must be at least one day in advance")
		}
		if alt.Equal(main) || slices.ContainsFunc(out, alt.Equal) {
			return nil, invalid("alternative_slots", "alternatives must differ from each other and from the main slot")
		}
		out = append(out, alt)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
