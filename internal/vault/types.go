package vault

import (
	"time"
)

// SchemaVersion is the current VaultMeta schema version.
const SchemaVersion = 1

// Lane template types.
const (
	LaneTypeMelody = "melody"
	LaneTypeDrums  = "drums"
	LaneTypeChord  = "chord"
)

// Clip source types.
const (
	SourceLaneTemplate = "laneTemplate"
	SourceAudioLoop    = "audioLoop"
)

// Collection names as they appear in bundles, import counters and
// conflict records.
const (
	CollectionProjects           = "projects"
	CollectionReferenceLibraries = "referenceLibraries"
	CollectionKnowledgeEntries   = "knowledgeEntries"
	CollectionLaneTemplates      = "laneTemplates"
	CollectionChordProgressions  = "chordProgressions"
	CollectionAudioLoops         = "audioLoops"
	CollectionProjectClips       = "projectClips"
	CollectionSettings           = "settings"
)

// Entity is implemented by every collection item. Merge ordering uses
// ModifiedAt; identity uses EntityID.
type Entity interface {
	EntityID() string
	ModifiedAt() time.Time
}

// VaultMeta is the root synchronizable document. All collections are
// optional; an absent collection merges as empty.
type VaultMeta struct {
	SchemaVersion      int                   `json:"schemaVersion"`
	DeviceID           string                `json:"deviceId"`
	UpdatedAt          time.Time             `json:"updatedAt"`
	Projects           []Project             `json:"projects,omitempty"`
	ReferenceLibraries []ReferenceLibrary    `json:"referenceLibraries,omitempty"`
	KnowledgeEntries   []KnowledgeEntry      `json:"knowledgeEntries,omitempty"`
	Settings           *Settings             `json:"settings,omitempty"`
	LaneTemplates      []LaneTemplateRef     `json:"laneTemplates,omitempty"`
	ChordProgressions  []ChordProgressionRef `json:"chordProgressions,omitempty"`
	AudioLoops         []AudioLoopRef        `json:"audioLoops,omitempty"`
	ProjectClips       []ProjectClipRefEntry `json:"projectClips,omitempty"`
}

// NewVaultMeta creates an empty VaultMeta for a device.
func NewVaultMeta(deviceID string) *VaultMeta {
	return &VaultMeta{
		SchemaVersion: SchemaVersion,
		DeviceID:      deviceID,
		UpdatedAt:     time.Now(),
	}
}

// Project is top-level song/sketch metadata.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status,omitempty"`
	Description string    `json:"description,omitempty"`
	BPM         float64   `json:"bpm,omitempty"`
	Key         string    `json:"key,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p Project) EntityID() string { return p.ID }
func (p Project) ModifiedAt() time.Time { return p.UpdatedAt }

// ReferenceLibrary groups external listening/reference material.
type ReferenceLibrary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URLs      []string  `json:"urls,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r ReferenceLibrary) EntityID() string { return r.ID }
func (r ReferenceLibrary) ModifiedAt() time.Time { return r.UpdatedAt }

// KnowledgeEntry is a free-form note (technique, theory, gear).
type KnowledgeEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (k KnowledgeEntry) EntityID() string { return k.ID }
func (k KnowledgeEntry) ModifiedAt() time.Time { return k.UpdatedAt }

// Settings is a whole-object document merged by last-write-wins on its
// own UpdatedAt, never entity-by-entity.
type Settings struct {
	Theme            string    `json:"theme,omitempty"`
	DefaultBPM       float64   `json:"defaultBpm,omitempty"`
	DefaultQuantize  string    `json:"defaultQuantize,omitempty"`
	MetronomeEnabled bool      `json:"metronomeEnabled,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// LaneSettings holds playback configuration for a lane.
type LaneSettings struct {
	InstrumentID    string `json:"instrumentId,omitempty"`
	NoteMode        string `json:"noteMode,omitempty"`
	DefaultVelocity int    `json:"defaultVelocity,omitempty"`
	QuantizeGrid    string `json:"quantizeGrid,omitempty"`
	Color           string `json:"color,omitempty"`
}

// Note is a single musical event within a lane template.
// Pitch 0..127, StartBeat >= 0, Duration > 0, Velocity 1..127.
type Note struct {
	Pitch     int     `json:"pitch"`
	StartBeat float64 `json:"startBeat"`
	Duration  float64 `json:"duration"`
	Velocity  int     `json:"velocity"`
}

// LaneTemplateRef is a reusable pattern: an ordered note list plus lane
// settings and musical metadata. ContentHash fingerprints the
// performance-affecting fields only (see ContentHash).
type LaneTemplateRef struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Type          string       `json:"type"`
	Settings      LaneSettings `json:"settings"`
	Notes         []Note       `json:"notes,omitempty"`
	BPM           float64      `json:"bpm,omitempty"`
	Bars          int          `json:"bars,omitempty"`
	TimeSignature string       `json:"timeSignature,omitempty"`
	Key           string       `json:"key,omitempty"`
	Scale         string       `json:"scale,omitempty"`
	ContentHash   string       `json:"contentHash,omitempty"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

func (l LaneTemplateRef) EntityID() string { return l.ID }
func (l LaneTemplateRef) ModifiedAt() time.Time { return l.UpdatedAt }

// ChordProgressionRef stores a progression as parallel numeral/duration
// arrays. Invariant: len(Numerals) == len(Durations).
type ChordProgressionRef struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	Numerals      []string  `json:"numerals"`
	Durations     []float64 `json:"durations"`
	RhythmPattern string    `json:"rhythmPattern,omitempty"`
	ContentHash   string    `json:"contentHash,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (c ChordProgressionRef) EntityID() string { return c.ID }
func (c ChordProgressionRef) ModifiedAt() time.Time { return c.UpdatedAt }

// AudioLoopRef references an audio blob by content hash. Invariant:
// BlobID equals the content hash of the referenced bytes, so tampering
// and duplication are both detectable.
type AudioLoopRef struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	BlobID    string    `json:"blobId"`
	BlobHash  string    `json:"blobHash"`
	MimeType  string    `json:"mimeType,omitempty"`
	BPM       float64   `json:"bpm,omitempty"`
	Bars      int       `json:"bars,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a AudioLoopRef) EntityID() string { return a.ID }
func (a AudioLoopRef) ModifiedAt() time.Time { return a.UpdatedAt }

// ProjectClipRefEntry places a lane template or audio loop on a project
// timeline. StartBar and LengthBars are 1-based and must be >= 1.
type ProjectClipRefEntry struct {
	ID         string        `json:"id"`
	ProjectID  string        `json:"projectId"`
	SourceID   string        `json:"sourceId"`
	SourceType string        `json:"sourceType"`
	StartBar   int           `json:"startBar"`
	LengthBars int           `json:"lengthBars"`
	Override   *LaneSettings `json:"override,omitempty"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

func (p ProjectClipRefEntry) EntityID() string { return p.ID }
func (p ProjectClipRefEntry) ModifiedAt() time.Time { return p.UpdatedAt }

// BlobEntry describes one stored blob in a manifest.
type BlobEntry struct {
	ID        string    `json:"id"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mimeType"`
	CreatedAt time.Time `json:"createdAt"`
	Checksum  string    `json:"checksum"`
}

// Manifest maps blob ids to their entries.
type Manifest struct {
	SchemaVersion int                  `json:"schemaVersion"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
	Blobs         map[string]BlobEntry `json:"blobs"`
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	now := time.Now()
	return &Manifest{
		SchemaVersion: SchemaVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
		Blobs:         make(map[string]BlobEntry),
	}
}

// ReferencedBlobIDs returns the blob ids referenced by the audio loop
// collection, deduplicated, in first-seen order.
func (m *VaultMeta) ReferencedBlobIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, loop := range m.AudioLoops {
		if loop.BlobID == "" || seen[loop.BlobID] {
			continue
		}
		seen[loop.BlobID] = true
		ids = append(ids, loop.BlobID)
	}
	return ids
}
