// Package note maps frequencies onto the twelve-tone equal-tempered scale
// with A4 = MIDI 69 = 440 Hz.
package note

import (
	"fmt"
	"math"
	"strconv"
)

const (
	ReferenceHz   = 440.0
	ReferenceMIDI = 69
	MinMIDI       = 0
	MaxMIDI       = 127
)

// Names lists the pitch classes in MIDI order starting at C.
var Names = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note is the nearest equal-tempered note to a frequency. Valid is false for
// the undefined note produced by silence or a non-positive estimate.
type Note struct {
	Name  string  // Pitch class and octave, e.g. "A4".
	MIDI  int     // Nearest MIDI number, clamped to [0, 127].
	Cents float64 // Deviation from MIDI in cents.
	Valid bool
}

// Undefined is returned for frequencies with no meaningful pitch.
var Undefined = Note{Name: "--"}

// FromFrequency returns the nearest note to hz and how far off it is. Values
// outside the MIDI range snap to the nearest end and report the full
// distance in cents.
func FromFrequency(hz float64) Note {
	if !(hz > 0) || math.IsInf(hz, 1) {
		return Undefined
	}

	midiFloat := ReferenceMIDI + 12*math.Log2(hz/ReferenceHz)
	midi := int(math.Round(midiFloat))
	midi = max(MinMIDI, min(MaxMIDI, midi))

	return Note{
		Name:  Names[midi%12] + strconv.Itoa(midi/12-1),
		MIDI:  midi,
		Cents: (midiFloat - float64(midi)) * 100,
		Valid: true,
	}
}

// Frequency returns the equal-tempered frequency of a MIDI number.
func Frequency(midi int) float64 {
	return ReferenceHz * math.Exp2(float64(midi-ReferenceMIDI)/12)
}

// String renders "A4 (+0.3 cents)", or "--" when undefined.
func (n Note) String() string {
	if !n.Valid {
		return Undefined.Name
	}
	return fmt.Sprintf("%s (%+.1f cents)", n.Name, n.Cents)
}
