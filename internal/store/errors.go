package store

import "errors"

var (
	ErrNotFound         = errors.New("record not found")
	ErrUIDRequired      = errors.New("uid is required for synced entities")
	ErrDuplicateUID     = errors.New("uid already exists")
	ErrPairCodeInvalid  = errors.New("pairing code unknown or already used")
	ErrPairCodeExpired  = errors.New("pairing code expired")
	ErrTrackerNotFound  = errors.New("tracker not found for goal")
	ErrEntryOpen        = errors.New("a time entry is already running")
	ErrNoActiveEntry    = errors.New("no time entry is running")
	ErrUnknownGoalKind  = errors.New("unknown goal kind")
	ErrInvalidEntity    = errors.New("entity failed validation")
	ErrUnknownSyncTable = errors.New("table does not participate in sync")
	ErrHostOnly         = errors.New("operation only valid in host mode")
)
