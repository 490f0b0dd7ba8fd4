package conflict

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/groovekit/loopvault/internal/vault"
)

// Diff severities, by how much a wrong pick would hurt.
const (
	SeverityHigh   = "high"   // Musical content or structure differs
	SeverityMedium = "medium" // Playback settings differ
	SeverityLow    = "low"    // Cosmetic only
)

// Diff categories.
const (
	CategoryContent    = "content"
	CategoryStructural = "structural"
	CategorySettings   = "settings"
	CategoryCosmetic   = "cosmetic"
)

// fieldCategories maps JSON field names to a category. Unlisted fields
// default to content, the conservative choice.
var fieldCategories = map[string]string{
	"notes":       CategoryContent,
	"numerals":    CategoryContent,
	"durations":   CategoryContent,
	"body":        CategoryContent,
	"urls":        CategoryContent,
	"blobId":      CategoryContent,
	"blobHash":    CategoryContent,
	"contentHash": CategoryContent,

	"type":          CategoryStructural,
	"sourceType":    CategoryStructural,
	"sourceId":      CategoryStructural,
	"projectId":     CategoryStructural,
	"startBar":      CategoryStructural,
	"lengthBars":    CategoryStructural,
	"bars":          CategoryStructural,
	"timeSignature": CategoryStructural,

	"settings":      CategorySettings,
	"override":      CategorySettings,
	"bpm":           CategorySettings,
	"key":           CategorySettings,
	"scale":         CategorySettings,
	"status":        CategorySettings,
	"rhythmPattern": CategorySettings,
	"mimeType":      CategorySettings,

	"name":        CategoryCosmetic,
	"title":       CategoryCosmetic,
	"description": CategoryCosmetic,
	"color":       CategoryCosmetic,
	"tags":        CategoryCosmetic,
	"updatedAt":   CategoryCosmetic,
}

func categorySeverity(category string) string {
	switch category {
	case CategoryContent, CategoryStructural:
		return SeverityHigh
	case CategorySettings:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// FieldDiff describes one field that differs between the two sides of a
// conflict. Local and Remote hold compact JSON renderings; Detail holds
// a character-level change description for text fields.
type FieldDiff struct {
	Field    string `json:"field"`
	Category string `json:"category"`
	Severity string `json:"severity"`
	Local    string `json:"local"`
	Remote   string `json:"remote"`
	Detail   string `json:"detail,omitempty"`
}

// Summary is the operator-facing view of a conflict record.
type Summary struct {
	ConflictID      string      `json:"conflictId"`
	EntityType      string      `json:"entityType"`
	EntityID        string      `json:"entityId"`
	LocalDevice     string      `json:"localDevice"`
	RemoteDevice    string      `json:"remoteDevice"`
	LocalUpdatedAt  time.Time   `json:"localUpdatedAt"`
	RemoteUpdatedAt time.Time   `json:"remoteUpdatedAt"`
	Resolved        bool        `json:"resolved"`
	Diffs           []FieldDiff `json:"diffs"`
}

// MaxSeverity returns the highest severity among the diffs, or low when
// nothing differs.
func (s *Summary) MaxSeverity() string {
	severity := SeverityLow
	for _, d := range s.Diffs {
		switch d.Severity {
		case SeverityHigh:
			return SeverityHigh
		case SeverityMedium:
			severity = SeverityMedium
		}
	}
	return severity
}

// Summarize builds a field-by-field view of a conflict record.
func Summarize(rec *vault.ConflictRecord) (*Summary, error) {
	var localFields, remoteFields map[string]json.RawMessage
	if err := json.Unmarshal(rec.LocalValue, &localFields); err != nil {
		return nil, fmt.Errorf("conflict %s: local value is not an object: %w", rec.ID, err)
	}
	if err := json.Unmarshal(rec.RemoteValue, &remoteFields); err != nil {
		return nil, fmt.Errorf("conflict %s: remote value is not an object: %w", rec.ID, err)
	}

	fields := make(map[string]bool, len(localFields)+len(remoteFields))
	for f := range localFields {
		fields[f] = true
	}
	for f := range remoteFields {
		fields[f] = true
	}
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	summary := &Summary{
		ConflictID:      rec.ID,
		EntityType:      rec.EntityType,
		EntityID:        rec.EntityID,
		LocalDevice:     ShortDeviceID(rec.LocalDeviceID),
		RemoteDevice:    ShortDeviceID(rec.RemoteDeviceID),
		LocalUpdatedAt:  rec.LocalUpdatedAt,
		RemoteUpdatedAt: rec.RemoteUpdatedAt,
		Resolved:        rec.Resolved(),
	}

	for _, field := range names {
		local, remote := localFields[field], remoteFields[field]
		if jsonEqual(local, remote) {
			continue
		}
		category, ok := fieldCategories[field]
		if !ok {
			category = CategoryContent
		}
		diff := FieldDiff{
			Field:    field,
			Category: category,
			Severity: categorySeverity(category),
			Local:    renderValue(local),
			Remote:   renderValue(remote),
		}
		if ls, lok := asString(local); lok {
			if rs, rok := asString(remote); rok {
				diff.Detail = textDiff(ls, rs)
			}
		}
		summary.Diffs = append(summary.Diffs, diff)
	}
	return summary, nil
}

// ValidateForResolution checks that a conflict side is a structurally
// valid entity before it is allowed to win.
func ValidateForResolution(entityType string, value json.RawMessage) error {
	return vault.ValidateEntity(entityType, value)
}

// ApplyResolution resolves a record in place. The chosen value is
// validated first; an already-resolved record is immutable and returns
// an error.
func ApplyResolution(rec *vault.ConflictRecord, choice, deviceID string) (json.RawMessage, error) {
	if rec.Resolved() {
		return nil, fmt.Errorf("conflict %s is already resolved (%s at %s)",
			rec.ID, rec.Resolution.Choice, rec.Resolution.ResolvedAt.Format(time.RFC3339))
	}
	value, ok := rec.Value(choice)
	if !ok {
		return nil, fmt.Errorf("unknown resolution choice %q (want %q or %q)",
			choice, vault.ChoiceLocal, vault.ChoiceRemote)
	}
	if err := ValidateForResolution(rec.EntityType, value); err != nil {
		return nil, fmt.Errorf("chosen %s value is invalid: %w", choice, err)
	}
	rec.Resolution = &vault.Resolution{
		ConflictID: rec.ID,
		Choice:     choice,
		ResolvedAt: time.Now(),
		ResolvedBy: deviceID,
	}
	return value, nil
}

// ShortDeviceID truncates a device id (typically a UUID) to its final
// segment for display.
func ShortDeviceID(id string) string {
	if i := strings.LastIndexByte(id, '-'); i >= 0 && i < len(id)-1 {
		return id[i+1:]
	}
	if len(id) > 12 {
		return id[len(id)-12:]
	}
	return id
}

// textDiff renders a compact insert/delete description of a string
// change, e.g. `-"old" +"new"`.
func textDiff(local, remote string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(local, remote, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			fmt.Fprintf(&b, "-%q ", d.Text)
		case diffmatchpatch.DiffInsert:
			fmt.Fprintf(&b, "+%q ", d.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return string(a) == string(b)
	}
	an, _ := json.Marshal(av)
	bn, _ := json.Marshal(bv)
	return string(an) == string(bn)
}

func renderValue(raw json.RawMessage) string {
	if raw == nil {
		return "(absent)"
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func asString(raw json.RawMessage) (string, bool) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, true
	}
	return "", false
}
