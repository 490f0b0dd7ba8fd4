package vault

import (
	"encoding/json"
	"time"
)

// Resolution choices for a conflict.
const (
	ChoiceLocal  = "local"
	ChoiceRemote = "remote"
)

// ConflictRecord captures both sides of a concurrent edit detected during
// sync. The losing value is never discarded; it lives here until an
// operator resolves the record.
type ConflictRecord struct {
	ID              string          `json:"id"`
	EntityType      string          `json:"entityType"`
	EntityID        string          `json:"entityId"`
	LocalValue      json.RawMessage `json:"localValue"`
	RemoteValue     json.RawMessage `json:"remoteValue"`
	LocalDeviceID   string          `json:"localDeviceId"`
	RemoteDeviceID  string          `json:"remoteDeviceId"`
	LocalUpdatedAt  time.Time       `json:"localUpdatedAt"`
	RemoteUpdatedAt time.Time       `json:"remoteUpdatedAt"`
	DetectedAt      time.Time       `json:"detectedAt"`
	Resolution      *Resolution     `json:"resolution,omitempty"`
}

// Resolved reports whether the record already carries a resolution.
func (c *ConflictRecord) Resolved() bool {
	return c.Resolution != nil
}

// Value returns the raw value for a resolution choice.
func (c *ConflictRecord) Value(choice string) (json.RawMessage, bool) {
	switch choice {
	case ChoiceLocal:
		return c.LocalValue, true
	case ChoiceRemote:
		return c.RemoteValue, true
	}
	return nil, false
}

// Resolution records an operator's choice for a conflict. A record's
// resolution is immutable once set.
type Resolution struct {
	ConflictID string    `json:"conflictId"`
	Choice     string    `json:"choice"`
	ResolvedAt time.Time `json:"resolvedAt"`
	ResolvedBy string    `json:"resolvedBy"`
}
