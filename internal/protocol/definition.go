package protocol

import (
	"regexp"
)

// Format identifies how a protocol is carried on air and which firmware
// message type it is decoded from
type Format int

const (
	FormatSynced     Format = iota // MS: sync pulse followed by two-state data
	FormatUnsynced                 // MU: raw pulse train without sync
	FormatManchester               // MC: firmware-demodulated Manchester hex
	FormatNoise                    // MN: xFSK payload from the CC1101 packet engine
)

func (f Format) String() string {
	switch f {
	case FormatSynced:
		return "synced"
	case FormatUnsynced:
		return "unsynced"
	case FormatManchester:
		return "manchester"
	case FormatNoise:
		return "noise"
	}
	return "unknown"
}

// DefaultClockTolerance is the fractional tolerance applied when comparing
// a frame clock with a protocol clock
const DefaultClockTolerance = 0.3

// DefaultPaddingBits pads demodulated bit messages to whole nibbles
const DefaultPaddingBits = 4

// Definition is one entry of the protocol catalog. Pulse patterns are
// expressed in multiples of the clock. A Definition is never mutated once
// it has been added to a Catalog.
type Definition struct {
	ID           string
	Name         string
	Comment      string
	ClientModule string
	Format       Format

	// ClockAbs is the nominal clock in microseconds; zero or negative
	// accepts any clock.
	ClockAbs  float64
	Tolerance float64

	Sync  []float64
	One   []float64
	Zero  []float64
	Float []float64
	Start []float64

	LengthMin int
	LengthMax int // zero means unbounded

	// ExactLength, when set, replaces the LengthMin/LengthMax range check.
	// It is a bit count for every format, MN included, where LengthMin and
	// LengthMax count hex digits.
	ExactLength int

	PolarityInvert bool
	ClockMin       int
	ClockMax       int

	// Method names the Manchester decoder or MN check bound to the
	// protocol. PostDemodulation names a post-demodulation validator.
	Method           string
	PostDemodulation string

	Preamble    string
	Postamble   string
	PaddingBits int

	ReconstructBit bool
	DispatchBin    bool
	RemoveZero     bool

	ModuleMatch string
	RFMode      string
	RegexMatch  string

	Disabled bool

	moduleRe *regexp.Regexp
	regexRe  *regexp.Regexp
}

// Active reports whether the protocol takes part in decoding
func (d *Definition) Active() bool {
	return !d.Disabled
}

// HasExactLength reports whether the exact-length override is in force
func (d *Definition) HasExactLength() bool {
	return d.ExactLength > 0
}

// ClockTolerance returns the fractional clock tolerance
func (d *Definition) ClockTolerance() float64 {
	if d.Tolerance > 0 {
		return d.Tolerance
	}
	return DefaultClockTolerance
}

// Padding returns the bit multiple a demodulated message is padded to
func (d *Definition) Padding() int {
	if d.PaddingBits > 0 {
		return d.PaddingBits
	}
	return DefaultPaddingBits
}

// SignalWidth is the number of pulse ids that form one data bit
func (d *Definition) SignalWidth() int {
	return len(d.One)
}

// HasClockRange reports whether a Manchester clock window is defined
func (d *Definition) HasClockRange() bool {
	return d.ClockMax > 0
}

// ClockInRange reports whether clock lies strictly inside the clock window
func (d *Definition) ClockInRange(clock int) bool {
	if !d.HasClockRange() {
		return true
	}
	return clock > d.ClockMin && clock < d.ClockMax
}

// MatchesModule applies the modulematch filter to a finished payload
func (d *Definition) MatchesModule(payload string) bool {
	if d.moduleRe == nil {
		return true
	}
	return d.moduleRe.MatchString(payload)
}

// MatchesRaw applies the regexMatch guard to MN hex data
func (d *Definition) MatchesRaw(data string) bool {
	if d.regexRe == nil {
		return true
	}
	return d.regexRe.MatchString(data)
}
