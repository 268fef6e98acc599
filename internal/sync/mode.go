package sync

import "fmt"

// Mode selects how this process participates in synchronization. Exactly
// one of the three holds; nothing downstream distinguishes local from host
// beyond these two predicates.
type Mode string

const (
	// ModeLocal runs standalone with no server and no queue.
	ModeLocal Mode = "local"
	// ModeHost serves the authoritative database to paired clients.
	ModeHost Mode = "host"
	// ModeClient writes optimistically and syncs against a host.
	ModeClient Mode = "client"
)

// ParseMode validates a persisted mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLocal, ModeHost, ModeClient:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown deployment mode %q", s)
	}
}

// DirectWrite reports whether writes land in the authoritative database
// immediately, with no queue.
func (m Mode) DirectWrite() bool {
	return m == ModeLocal || m == ModeHost
}

// ShouldSync reports whether writes must be queued and pushed to a host.
func (m Mode) ShouldSync() bool {
	return m == ModeClient
}
