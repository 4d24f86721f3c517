// Package demod turns parsed firmware frames into protocol payloads. It
// walks the protocol catalog in priority order for each message family.
package demod

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/dbehnke/signalduino/internal/fsk"
	"github.com/dbehnke/signalduino/internal/manchester"
	"github.com/dbehnke/signalduino/internal/pattern"
	"github.com/dbehnke/signalduino/internal/postdemod"
	"github.com/dbehnke/signalduino/internal/protocol"
)

// DefaultMaxMuRepeat caps the MU repeats reported for one frame
const DefaultMaxMuRepeat = 4

// Result is one decoded payload
type Result struct {
	ProtocolID string
	Payload    string
	BitLength  int
	Clock      float64
	// Check names the integrity check that accepted the frame, if any
	Check string
	Meta  map[string]any
}

// PulseFrame is the content of an MS or MU message. Pulses carry the raw
// durations in microseconds in the order the firmware sent them.
type PulseFrame struct {
	Pulses  []pattern.Pulse
	Data    string
	ClockID string
}

// ManchesterFrame is the content of an MC message
type ManchesterFrame struct {
	Hex     string
	Clock   int
	Length  int
	Type    string // "MC", or "Mc" for the inverted firmware variant
	Version string
}

// NoiseFrame is the content of an MN message
type NoiseFrame struct {
	Hex    string
	RFMode string
	AFC    *int
}

// Demodulator holds the catalog together with the decoders each protocol
// references. Method names are resolved once, in New.
type Demodulator struct {
	catalog     *protocol.Catalog
	logger      zerolog.Logger
	maxMuRepeat int

	mc map[string]manchester.Decoder
	mn map[string]fsk.Check
	pd map[string]postdemod.Validator
}

// Option configures a Demodulator
type Option func(*Demodulator)

// WithMaxMuRepeat sets the MU repeat cap; zero means unlimited
func WithMaxMuRepeat(n int) Option {
	return func(d *Demodulator) { d.maxMuRepeat = n }
}

// New builds a Demodulator for catalog. A protocol that names an unknown
// decoder, check or validator is a configuration error.
func New(catalog *protocol.Catalog, logger zerolog.Logger, opts ...Option) (*Demodulator, error) {
	d := &Demodulator{
		catalog:     catalog,
		logger:      logger.With().Str("component", "demod").Logger(),
		maxMuRepeat: DefaultMaxMuRepeat,
		mc:          make(map[string]manchester.Decoder),
		mn:          make(map[string]fsk.Check),
		pd:          make(map[string]postdemod.Validator),
	}
	for _, o := range opts {
		o(d)
	}

	for _, def := range catalog.Ordered() {
		if def.PostDemodulation != "" {
			v, ok := postdemod.Lookup(def.PostDemodulation)
			if !ok {
				return nil, fmt.Errorf("protocol %s: unknown postDemodulation %q", def.ID, def.PostDemodulation)
			}
			d.pd[def.ID] = v
		}

		switch def.Format {
		case protocol.FormatManchester:
			dec, ok := manchester.Lookup(def.Method)
			if !ok {
				return nil, fmt.Errorf("protocol %s: unknown manchester method %q", def.ID, def.Method)
			}
			d.mc[def.ID] = dec
		case protocol.FormatNoise:
			chk, ok := fsk.Lookup(def.Method)
			if !ok {
				return nil, fmt.Errorf("protocol %s: unknown MN method %q", def.ID, def.Method)
			}
			d.mn[def.ID] = chk
		}
	}
	return d, nil
}

// Catalog returns the catalog the demodulator was built for
func (d *Demodulator) Catalog() *protocol.Catalog {
	return d.catalog
}

// normalize divides every pulse by clock, rounded to one decimal
func normalize(pulses []pattern.Pulse, clock float64) []pattern.Pulse {
	out := make([]pattern.Pulse, len(pulses))
	for i, p := range pulses {
		out[i] = pattern.Pulse{ID: p.ID, Value: math.Round(p.Value/clock*10) / 10}
	}
	return out
}

// pad appends zero bits until len(bits) is a multiple of n
func pad(bits string, n int) string {
	for n > 0 && len(bits)%n != 0 {
		bits += "0"
	}
	return bits
}

// symbols maps the pattern keys to their bit representation
type symbol struct {
	pattern []float64
	rep     string
	name    string
}

func dataSymbols(def *protocol.Definition) []symbol {
	return []symbol{
		{def.One, "1", "one"},
		{def.Zero, "0", "zero"},
		{def.Float, "F", "float"},
	}
}

// endLookup records, per pattern minus its last pulse, the first symbol
// seen. Used to recover a final bit whose last pulse was cut off.
type endLookup struct {
	keys []string
	reps map[string]string
}

func newEndLookup() *endLookup {
	return &endLookup{reps: make(map[string]string)}
}

func (e *endLookup) add(pstr, rep string) {
	if pstr == "" {
		return
	}
	short := pstr[:len(pstr)-1]
	if _, ok := e.reps[short]; ok {
		return
	}
	e.keys = append(e.keys, short)
	e.reps[short] = rep
}

func (e *endLookup) get(s string) (string, bool) {
	rep, ok := e.reps[s]
	return rep, ok
}
