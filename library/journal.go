package library

import "time"

// EventKind names an accepted circulation operation.
type EventKind string

const (
	EventMaterialStocked    EventKind = "material_stocked"
	EventUserEnrolled       EventKind = "user_enrolled"
	EventOrganizationAdded  EventKind = "organization_added"
	EventMaterialCheckedOut EventKind = "material_checked_out"
	EventMaterialReturned   EventKind = "material_returned"
	EventFineAccrued        EventKind = "fine_accrued"
	EventFinePaid           EventKind = "fine_paid"
)

// Event describes one state change applied by LendingService. Fields that do
// not apply to a kind are left zero.
type Event struct {
	Kind         EventKind `json:"kind"`
	OccurredAt   time.Time `json:"occurred_at"`
	UserID       int       `json:"user_id,omitempty"`
	MaterialID   int       `json:"material_id,omitempty"`
	MaterialType string    `json:"material_type,omitempty"`
	Organization string    `json:"organization,omitempty"`
	Amount       int       `json:"amount,omitempty"`
}

// Journal receives events after they have been applied. A failing journal
// never undoes the operation that produced the event.
type Journal interface {
	Record(e Event) error
}

type nopJournal struct{}

func (nopJournal) Record(Event) error { return nil }
