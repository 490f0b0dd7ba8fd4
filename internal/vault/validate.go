package vault

import (
	"encoding/json"
	"fmt"
)

// ValidationError reports a malformed entity or bundle shape. Invalid
// data is rejected before any mutation, never coerced to a default.
type ValidationError struct {
	EntityType string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: field %s: %s", e.EntityType, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.EntityType, e.Reason)
}

func invalid(entityType, field, reason string) error {
	return &ValidationError{EntityType: entityType, Field: field, Reason: reason}
}

// ValidateEntity checks required fields, enumeration membership and
// numeric range invariants for a raw entity of the given collection.
func ValidateEntity(entityType string, raw json.RawMessage) error {
	switch entityType {
	case CollectionProjects:
		var p Project
		if err := json.Unmarshal(raw, &p); err != nil {
			return invalid(entityType, "", "not a valid project object")
		}
		return p.Validate()
	case CollectionReferenceLibraries:
		var r ReferenceLibrary
		if err := json.Unmarshal(raw, &r); err != nil {
			return invalid(entityType, "", "not a valid reference library object")
		}
		return r.Validate()
	case CollectionKnowledgeEntries:
		var k KnowledgeEntry
		if err := json.Unmarshal(raw, &k); err != nil {
			return invalid(entityType, "", "not a valid knowledge entry object")
		}
		return k.Validate()
	case CollectionLaneTemplates:
		var l LaneTemplateRef
		if err := json.Unmarshal(raw, &l); err != nil {
			return invalid(entityType, "", "not a valid lane template object")
		}
		return l.Validate()
	case CollectionChordProgressions:
		var c ChordProgressionRef
		if err := json.Unmarshal(raw, &c); err != nil {
			return invalid(entityType, "", "not a valid chord progression object")
		}
		return c.Validate()
	case CollectionAudioLoops:
		var a AudioLoopRef
		if err := json.Unmarshal(raw, &a); err != nil {
			return invalid(entityType, "", "not a valid audio loop object")
		}
		return a.Validate()
	case CollectionProjectClips:
		var p ProjectClipRefEntry
		if err := json.Unmarshal(raw, &p); err != nil {
			return invalid(entityType, "", "not a valid project clip object")
		}
		return p.Validate()
	case CollectionSettings:
		var s Settings
		if err := json.Unmarshal(raw, &s); err != nil {
			return invalid(entityType, "", "not a valid settings object")
		}
		return nil
	}
	return invalid(entityType, "", "unknown entity type")
}

// Validate checks project invariants.
func (p Project) Validate() error {
	if p.ID == "" {
		return invalid(CollectionProjects, "id", "required")
	}
	if p.Name == "" {
		return invalid(CollectionProjects, "name", "required")
	}
	return nil
}

// Validate checks reference library invariants.
func (r ReferenceLibrary) Validate() error {
	if r.ID == "" {
		return invalid(CollectionReferenceLibraries, "id", "required")
	}
	if r.Name == "" {
		return invalid(CollectionReferenceLibraries, "name", "required")
	}
	return nil
}

// Validate checks knowledge entry invariants.
func (k KnowledgeEntry) Validate() error {
	if k.ID == "" {
		return invalid(CollectionKnowledgeEntries, "id", "required")
	}
	if k.Title == "" {
		return invalid(CollectionKnowledgeEntries, "title", "required")
	}
	return nil
}

// Validate checks lane template invariants, including per-note ranges.
func (l LaneTemplateRef) Validate() error {
	if l.ID == "" {
		return invalid(CollectionLaneTemplates, "id", "required")
	}
	if l.Name == "" {
		return invalid(CollectionLaneTemplates, "name", "required")
	}
	switch l.Type {
	case LaneTypeMelody, LaneTypeDrums, LaneTypeChord:
	default:
		return invalid(CollectionLaneTemplates, "type", fmt.Sprintf("unknown lane type %q", l.Type))
	}
	for i, n := range l.Notes {
		if n.Pitch < 0 || n.Pitch > 127 {
			return invalid(CollectionLaneTemplates, fmt.Sprintf("notes[%d].pitch", i), "must be 0..127")
		}
		if n.StartBeat < 0 {
			return invalid(CollectionLaneTemplates, fmt.Sprintf("notes[%d].startBeat", i), "must be >= 0")
		}
		if n.Duration <= 0 {
			return invalid(CollectionLaneTemplates, fmt.Sprintf("notes[%d].duration", i), "must be > 0")
		}
		if n.Velocity < 1 || n.Velocity > 127 {
			return invalid(CollectionLaneTemplates, fmt.Sprintf("notes[%d].velocity", i), "must be 1..127")
		}
	}
	return nil
}

// Validate checks chord progression invariants.
func (c ChordProgressionRef) Validate() error {
	if c.ID == "" {
		return invalid(CollectionChordProgressions, "id", "required")
	}
	if len(c.Numerals) != len(c.Durations) {
		return invalid(CollectionChordProgressions, "durations",
			fmt.Sprintf("length %d does not match numerals length %d", len(c.Durations), len(c.Numerals)))
	}
	return nil
}

// Validate checks audio loop invariants. BlobID must equal BlobHash
// since blobs are content-addressed.
func (a AudioLoopRef) Validate() error {
	if a.ID == "" {
		return invalid(CollectionAudioLoops, "id", "required")
	}
	if a.BlobID == "" {
		return invalid(CollectionAudioLoops, "blobId", "required")
	}
	if a.BlobHash == "" {
		return invalid(CollectionAudioLoops, "blobHash", "required")
	}
	if a.BlobID != a.BlobHash {
		return invalid(CollectionAudioLoops, "blobId", "must equal blobHash (content-addressed)")
	}
	return nil
}

// Validate checks project clip invariants.
func (p ProjectClipRefEntry) Validate() error {
	if p.ID == "" {
		return invalid(CollectionProjectClips, "id", "required")
	}
	switch p.SourceType {
	case SourceLaneTemplate, SourceAudioLoop:
	default:
		return invalid(CollectionProjectClips, "sourceType", fmt.Sprintf("unknown source type %q", p.SourceType))
	}
	if p.SourceID == "" {
		return invalid(CollectionProjectClips, "sourceId", "required")
	}
	if p.StartBar < 1 {
		return invalid(CollectionProjectClips, "startBar", "must be >= 1")
	}
	if p.LengthBars < 1 {
		return invalid(CollectionProjectClips, "lengthBars", "must be >= 1")
	}
	return nil
}

// ReplaceEntity overwrites the entity with the given id in the named
// collection with the provided raw value. Used when committing a conflict
// resolution. Returns a ValidationError for unknown types or malformed
// values, and an error if no entity with that id exists.
func (m *VaultMeta) ReplaceEntity(entityType, id string, raw json.RawMessage) error {
	if err := ValidateEntity(entityType, raw); err != nil {
		return err
	}
	switch entityType {
	case CollectionProjects:
		var v Project
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		return replaceByID(m.Projects, entityType, id, v)
	case CollectionReferenceLibraries:
		var v ReferenceLibrary
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		return replaceByID(m.ReferenceLibraries, entityType, id, v)
	case CollectionKnowledgeEntries:
		var v KnowledgeEntry
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		return replaceByID(m.KnowledgeEntries, entityType, id, v)
	case CollectionLaneTemplates:
		var v LaneTemplateRef
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		return replaceByID(m.LaneTemplates, entityType, id, v)
	case CollectionChordProgressions:
		var v ChordProgressionRef
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		return replaceByID(m.ChordProgressions, entityType, id, v)
	case CollectionAudioLoops:
		var v AudioLoopRef
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		return replaceByID(m.AudioLoops, entityType, id, v)
	case CollectionProjectClips:
		var v ProjectClipRefEntry
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		return replaceByID(m.ProjectClips, entityType, id, v)
	}
	return invalid(entityType, "", "unknown entity type")
}

func replaceByID[T Entity](list []T, entityType, id string, value T) error {
	for i := range list {
		if list[i].EntityID() == id {
			list[i] = value
			return nil
		}
	}
	return fmt.Errorf("%s %s not found in vault", entityType, id)
}
