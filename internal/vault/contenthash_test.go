package vault

import (
	"testing"
	"time"
)

func TestLaneTemplateContentHashIgnoresCosmetics(t *testing.T) {
	template := LaneTemplateRef{
		ID:   "lt-1",
		Name: "Arp up",
		Type: LaneTypeMelody,
		Settings: LaneSettings{
			InstrumentID:    "piano",
			DefaultVelocity: 100,
			Color:           "#ff0000",
		},
		Notes: []Note{
			{Pitch: 60, StartBeat: 0, Duration: 1, Velocity: 100},
			{Pitch: 64, StartBeat: 1, Duration: 1, Velocity: 96},
		},
		BPM:       120,
		Bars:      1,
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	base := template.ComputeContentHash()
	if base == "" {
		t.Fatal("content hash is empty")
	}

	// Cosmetic changes must not move the hash
	renamed := template
	renamed.ID = "lt-other"
	renamed.Name = "Completely different"
	renamed.Settings.Color = "#00ff00"
	renamed.UpdatedAt = renamed.UpdatedAt.Add(time.Hour)
	if got := renamed.ComputeContentHash(); got != base {
		t.Errorf("hash changed on cosmetic edit: %s != %s", got, base)
	}

	// A note change must move it
	edited := template
	edited.Notes = []Note{
		{Pitch: 62, StartBeat: 0, Duration: 1, Velocity: 100},
		{Pitch: 64, StartBeat: 1, Duration: 1, Velocity: 96},
	}
	if got := edited.ComputeContentHash(); got == base {
		t.Error("hash unchanged after note edit")
	}

	// So must a settings change that affects playback
	retuned := template
	retuned.Settings.InstrumentID = "strings"
	if got := retuned.ComputeContentHash(); got == base {
		t.Error("hash unchanged after instrument change")
	}
}

func TestLaneTemplateContentHashDeterministic(t *testing.T) {
	template := LaneTemplateRef{
		ID:    "lt-1",
		Name:  "Arp",
		Type:  LaneTypeDrums,
		Notes: []Note{{Pitch: 36, StartBeat: 0, Duration: 0.5, Velocity: 127}},
	}
	first := template.ComputeContentHash()
	second := template.ComputeContentHash()
	if first != second {
		t.Errorf("hash not deterministic: %s != %s", first, second)
	}
}

func TestLaneTemplateContentHashNilNotes(t *testing.T) {
	withNil := LaneTemplateRef{ID: "a", Type: LaneTypeMelody}
	withEmpty := LaneTemplateRef{ID: "b", Type: LaneTypeMelody, Notes: []Note{}}
	if withNil.ComputeContentHash() != withEmpty.ComputeContentHash() {
		t.Error("nil and empty note lists must hash identically")
	}
}

func TestChordProgressionContentHash(t *testing.T) {
	prog := ChordProgressionRef{
		ID:        "cp-1",
		Name:      "Pop loop",
		Numerals:  []string{"I", "V", "vi", "IV"},
		Durations: []float64{4, 4, 4, 4},
	}
	base := prog.ComputeContentHash()

	renamed := prog
	renamed.Name = "Same chords, new name"
	if renamed.ComputeContentHash() != base {
		t.Error("hash changed on rename")
	}

	reordered := prog
	reordered.Numerals = []string{"I", "vi", "V", "IV"}
	if reordered.ComputeContentHash() == base {
		t.Error("hash unchanged after reordering numerals")
	}

	restyled := prog
	restyled.RhythmPattern = "syncopated"
	if restyled.ComputeContentHash() == base {
		t.Error("hash unchanged after rhythm pattern change")
	}
}
