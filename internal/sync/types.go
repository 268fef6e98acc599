package sync

import (
	"encoding/json"
	"time"
)

// Operation constants
const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// Tables that participate in sync, in drain order. Tracker entries and
// environment snapshots are local-only and never appear here.
var Tables = []string{"tasks", "time_history", "trackers", "goals"}

// KnownTable reports whether name is a synced table.
func KnownTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}

// QueueEntry is one pending outbound change. Payload is the full JSON
// snapshot of the entity at enqueue time; deletes carry only the UID,
// tombstone flag, and updated_at.
type QueueEntry struct {
	ID        int64           `json:"id"`
	TableName string          `json:"table_name"`
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// PushRequest is the body of POST /api/v1/sync/{table}.
type PushRequest struct {
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
}

// PushResponse acknowledges an applied push.
type PushResponse struct {
	Status string `json:"status"`
}

// Tombstone is the minimal delete payload.
type Tombstone struct {
	UID       string    `json:"uid"`
	Deleted   bool      `json:"deleted"`
	UpdatedAt time.Time `json:"updated_at"`
}
