package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// laneTemplateFingerprint holds exactly the fields of a lane template
// that affect playback. Name, color and id are deliberately absent so
// the same musical content re-imported under a different id hashes
// identically. Field order is fixed by this declaration, which makes the
// serialized form deterministic regardless of how the source was stored.
type laneTemplateFingerprint struct {
	Type            string  `json:"type"`
	InstrumentID    string  `json:"instrumentId"`
	NoteMode        string  `json:"noteMode"`
	DefaultVelocity int     `json:"defaultVelocity"`
	QuantizeGrid    string  `json:"quantizeGrid"`
	Notes           []Note  `json:"notes"`
	BPM             float64 `json:"bpm"`
	Bars            int     `json:"bars"`
	TimeSignature   string  `json:"timeSignature"`
	Key             string  `json:"key"`
	Scale           string  `json:"scale"`
}

type chordProgressionFingerprint struct {
	Numerals      []string  `json:"numerals"`
	Durations     []float64 `json:"durations"`
	RhythmPattern string    `json:"rhythmPattern"`
}

func hashFingerprint(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Fingerprint structs contain only marshalable field types.
		panic("vault: fingerprint marshal: " + err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ComputeContentHash computes the deterministic fingerprint of a lane
// template over its performance-affecting fields.
func (l LaneTemplateRef) ComputeContentHash() string {
	notes := l.Notes
	if notes == nil {
		notes = []Note{}
	}
	return hashFingerprint(laneTemplateFingerprint{
		Type:            l.Type,
		InstrumentID:    l.Settings.InstrumentID,
		NoteMode:        l.Settings.NoteMode,
		DefaultVelocity: l.Settings.DefaultVelocity,
		QuantizeGrid:    l.Settings.QuantizeGrid,
		Notes:           notes,
		BPM:             l.BPM,
		Bars:            l.Bars,
		TimeSignature:   l.TimeSignature,
		Key:             l.Key,
		Scale:           l.Scale,
	})
}

// ComputeContentHash computes the deterministic fingerprint of a chord
// progression.
func (c ChordProgressionRef) ComputeContentHash() string {
	numerals := c.Numerals
	if numerals == nil {
		numerals = []string{}
	}
	durations := c.Durations
	if durations == nil {
		durations = []float64{}
	}
	return hashFingerprint(chordProgressionFingerprint{
		Numerals:      numerals,
		Durations:     durations,
		RhythmPattern: c.RhythmPattern,
	})
}

// HashBytes returns the hex SHA-256 of raw blob bytes. Blob ids MUST be
// produced by this function so a blob's id always equals its content hash.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
