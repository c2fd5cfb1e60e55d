package event

import "github.com/google/uuid"

// Scheduler diagnostics. System and group identities are carried as their
// type names so that consumers do not depend on the scheduler package.

type SystemCreated struct {
	ID   uuid.UUID
	Type string
}

type SystemDestroyed struct {
	ID   uuid.UUID
	Type string
}

// UpdateFailed is emitted when a group member's update returns an error or
// panics. The member stays in the update list.
type UpdateFailed struct {
	Group    string
	SystemID uuid.UUID
	System   string
	Frame    uint64
	Err      error
}

// SortFailed is emitted when a group cannot order its members.
type SortFailed struct {
	Group string
	Frame uint64
	Err   error
}
