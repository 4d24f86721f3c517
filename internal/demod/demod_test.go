package demod

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dbehnke/signalduino/internal/pattern"
	"github.com/dbehnke/signalduino/internal/protocol"
)

var (
	it31 = protocol.Definition{
		ID: "3.1", Format: protocol.FormatSynced, ClockAbs: -1,
		Sync: []float64{1, -44}, One: []float64{3.5, -1}, Zero: []float64{1, -3.8}, Float: []float64{1, -1},
		Preamble: "i", LengthMin: 24, LengthMax: 24,
	}
	bresserTemeo = protocol.Definition{
		ID: "44", Format: protocol.FormatUnsynced, ClockAbs: 500,
		Zero: []float64{4, -4}, One: []float64{4, -8}, Start: []float64{8, -8},
		Preamble: "W44#", ModuleMatch: "^W44#[A-F0-9]{18}", LengthMin: 64, LengthMax: 72,
	}
	skx = protocol.Definition{
		ID: "46", Format: protocol.FormatUnsynced, ClockAbs: 290,
		One: []float64{7, -1}, Zero: []float64{1, -7}, Start: []float64{-55},
		Preamble: "P46#", LengthMin: 14, LengthMax: 18,
	}
	gong = protocol.Definition{
		ID: "57", Format: protocol.FormatManchester, ClockMin: 300, ClockMax: 360,
		Method: "MCRaw", Preamble: "u57#", LengthMin: 21, LengthMax: 24,
	}
	funkbus = protocol.Definition{
		ID: "119", Format: protocol.FormatManchester, ClockMin: 460, ClockMax: 560,
		Method: "Funkbus", Preamble: "J", LengthMin: 47, LengthMax: 52,
	}
	lightning = protocol.Definition{
		ID: "131", Format: protocol.FormatNoise, Method: "BresserLightning",
		RFMode: "Bresser_lightning", Preamble: "W131#", LengthMin: 20, LengthMax: 20,
	}
)

func newDemod(t *testing.T, defs []protocol.Definition, opts ...Option) *Demodulator {
	t.Helper()
	c, err := protocol.NewCatalog(defs)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	d, err := New(c, zerolog.Nop(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

func pulses(values ...float64) []pattern.Pulse {
	out := make([]pattern.Pulse, 0, len(values))
	for i, v := range values {
		out = append(out, pattern.Pulse{ID: string(rune('0' + i)), Value: v})
	}
	return out
}

func it31Frame() PulseFrame {
	return PulseFrame{
		Pulses:  pulses(330, -14520, -1254, 1155, -330),
		Data:    "01" + strings.Repeat("02", 23) + "34",
		ClockID: "0",
	}
}

func TestSynced(t *testing.T) {
	d := newDemod(t, []protocol.Definition{it31})

	results := d.Synced(it31Frame())
	if len(results) != 1 {
		t.Fatalf("Synced() returned %d results, want 1", len(results))
	}
	r := results[0]
	if r.ProtocolID != "3.1" || r.Payload != "i000001" || r.BitLength != 24 {
		t.Errorf("Synced() = %+v, want 3.1 i000001 (24 bits)", r)
	}
	if r.Clock != 330 {
		t.Errorf("Synced() clock = %v, want 330", r.Clock)
	}
}

func TestSyncedRejections(t *testing.T) {
	exact := it31
	exact.ID = "3.2"
	exact.ExactLength = 20

	checked := it31
	checked.ID = "3.3"
	checked.PostDemodulation = "Revolt"

	wrongClock := it31
	wrongClock.ID = "3.4"
	wrongClock.ClockAbs = 600

	tests := []struct {
		name string
		def  protocol.Definition
	}{
		{"exact length mismatch", exact},
		{"postdemodulation length rejected", checked},
		{"clock out of tolerance", wrongClock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDemod(t, []protocol.Definition{tt.def})
			if results := d.Synced(it31Frame()); len(results) != 0 {
				t.Errorf("Synced() = %+v, want nothing", results)
			}
		})
	}
}

// msFrame encodes bits with the it31 pulse table: sync 01, one 34, zero 02
func msFrame(bits string) PulseFrame {
	var data strings.Builder
	data.WriteString("01")
	for _, b := range bits {
		if b == '1' {
			data.WriteString("34")
		} else {
			data.WriteString("02")
		}
	}
	f := it31Frame()
	f.Data = data.String()
	return f
}

func TestSyncedPostDemodulationChecksum(t *testing.T) {
	ws7035 := protocol.Definition{
		ID: "122", Format: protocol.FormatSynced, ClockAbs: -1,
		Sync: []float64{1, -44}, One: []float64{3.5, -1}, Zero: []float64{1, -3.8},
		Preamble: "TX", LengthMin: 44, LengthMax: 44, PostDemodulation: "WS7035",
	}
	d := newDemod(t, []protocol.Definition{ws7035})

	tests := []struct {
		name     string
		bits     string
		expected string
	}{
		{"valid checksum", "10100000100001000111001100100000011100111100", "TXA08473273C"},
		{"corrupted checksum", "10100000100001000111001100100000011100111110", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := d.Synced(msFrame(tt.bits))
			if tt.expected == "" {
				if len(results) != 0 {
					t.Errorf("Synced() = %+v, want nothing", results)
				}
				return
			}
			if len(results) != 1 {
				t.Fatalf("Synced() returned %d results, want 1", len(results))
			}
			r := results[0]
			if r.Payload != tt.expected || r.Check != "WS7035" || r.BitLength != 40 {
				t.Errorf("Synced() = %+v, want %s checked by WS7035", r, tt.expected)
			}
		})
	}
}

func TestSyncedWithoutClockPulse(t *testing.T) {
	d := newDemod(t, []protocol.Definition{it31})
	f := it31Frame()
	f.ClockID = "7"
	if results := d.Synced(f); len(results) != 0 {
		t.Errorf("Synced() = %+v, want nothing", results)
	}
}

const skxData = "01230121212301230121212121230121230351230121212301230121212121230121230351230121212301230121212121230121230351230121212301230121212121230121230351230121212301230121212121230121230351230"

func skxFrame() PulseFrame {
	return PulseFrame{
		Pulses: []pattern.Pulse{{ID: "0", Value: -1943}, {ID: "1", Value: 1966}, {ID: "2", Value: -327}, {ID: "3", Value: 247}, {ID: "5", Value: -15810}},
		Data:   skxData,
	}
}

func TestUnsyncedRepeats(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		expected int
	}{
		{"default cap", nil, 4},
		{"cap of two", []Option{WithMaxMuRepeat(2)}, 2},
		{"unlimited", []Option{WithMaxMuRepeat(0)}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDemod(t, []protocol.Definition{bresserTemeo, skx}, tt.opts...)
			results := d.Unsynced(skxFrame())
			if len(results) != tt.expected {
				t.Fatalf("Unsynced() returned %d results, want %d", len(results), tt.expected)
			}
			for _, r := range results {
				if r.ProtocolID != "46" || r.Payload != "P46#BAFB0" {
					t.Errorf("Unsynced() = %s %s, want 46 P46#BAFB0", r.ProtocolID, r.Payload)
				}
			}
		})
	}
}

func TestUnsyncedBresserTemeo(t *testing.T) {
	f := PulseFrame{
		Pulses: pulses(32001, -1939, 1967, 3896, -3895),
		Data:   "01213424242124212121242121242121212124212424212121212121242421212421242121242124242421242421242424242124212124242424242421212424212424212121242121212",
	}

	d := newDemod(t, []protocol.Definition{bresserTemeo, skx})
	results := d.Unsynced(f)
	if len(results) != 1 {
		t.Fatalf("Unsynced() returned %d results, want 1", len(results))
	}
	if results[0].Payload != "W44#D12160652EDE9F9B10" {
		t.Errorf("Unsynced() = %q, want W44#D12160652EDE9F9B10", results[0].Payload)
	}

	strict := bresserTemeo
	strict.ModuleMatch = "^W44#F"
	d = newDemod(t, []protocol.Definition{strict})
	if results := d.Unsynced(f); len(results) != 0 {
		t.Errorf("Unsynced() with failing modulematch = %+v", results)
	}
}

func TestUnsyncedExactLength(t *testing.T) {
	tests := []struct {
		name     string
		exact    int
		expected int
	}{
		{"matching override", 17, 4},
		{"shorter override", 12, 0},
		{"longer override", 18, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := skx
			def.ExactLength = tt.exact
			results := newDemod(t, []protocol.Definition{def}).Unsynced(skxFrame())
			if len(results) != tt.expected {
				t.Fatalf("Unsynced() returned %d results, want %d", len(results), tt.expected)
			}
			for _, r := range results {
				if r.Payload != "P46#BAFB0" {
					t.Errorf("Unsynced() = %q, want P46#BAFB0", r.Payload)
				}
			}
		})
	}
}

func TestManchesterExactLength(t *testing.T) {
	raw := protocol.Definition{
		ID: "9990", Format: protocol.FormatManchester, ClockMin: 300, ClockMax: 360,
		Method: "MCRaw", Preamble: "u9990#", LengthMin: 16, LengthMax: 64, ExactLength: 32,
	}
	d := newDemod(t, []protocol.Definition{raw})

	tests := []struct {
		name     string
		frame    ManchesterFrame
		expected string
	}{
		{"exact length", ManchesterFrame{Hex: "ABCDEF01", Clock: 332, Length: 32, Type: "MC"}, "u9990#ABCDEF01"},
		{"inside range but not exact", ManchesterFrame{Hex: "ABCDEF", Clock: 332, Length: 24, Type: "MC"}, ""},
		{"reported length differs", ManchesterFrame{Hex: "ABCDEF01", Clock: 332, Length: 31, Type: "MC"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := d.Manchester(tt.frame)
			if tt.expected == "" {
				if len(results) != 0 {
					t.Errorf("Manchester() = %+v, want nothing", results)
				}
				return
			}
			if len(results) != 1 || results[0].Payload != tt.expected {
				t.Errorf("Manchester() = %+v, want %q", results, tt.expected)
			}
		})
	}
}

func TestManchester(t *testing.T) {
	d := newDemod(t, []protocol.Definition{gong, funkbus})

	tests := []struct {
		name     string
		frame    ManchesterFrame
		expected string
	}{
		{"raw output", ManchesterFrame{Hex: "D55B58", Clock: 332, Length: 21, Type: "MC"}, "u57#D55B58"},
		{"inverted frame type", ManchesterFrame{Hex: "D55B58", Clock: 332, Length: 21, Type: "Mc"}, "u57#2AA4A7"},
		{"firmware 3.2 toggles polarity", ManchesterFrame{Hex: "D55B58", Clock: 332, Length: 21, Type: "MC", Version: "V 3.2.0 SIGNALduino"}, "u57#2AA4A7"},
		{"funkbus", ManchesterFrame{Hex: "9D4F3F7555A00", Clock: 500, Length: 52, Type: "MC"}, "J2C175F30008F"},
		{"clock out of range", ManchesterFrame{Hex: "D55B58", Clock: 400, Length: 21, Type: "MC"}, ""},
		{"too short", ManchesterFrame{Hex: "D55B58", Clock: 332, Length: 20, Type: "MC"}, ""},
		{"not hex", ManchesterFrame{Hex: "GGD9", Clock: 332, Length: 21, Type: "MC"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := d.Manchester(tt.frame)
			if tt.expected == "" {
				if len(results) != 0 {
					t.Errorf("Manchester() = %+v, want nothing", results)
				}
				return
			}
			if len(results) != 1 || results[0].Payload != tt.expected {
				t.Errorf("Manchester() = %+v, want %q", results, tt.expected)
			}
		})
	}
}

func TestNoise(t *testing.T) {
	d := newDemod(t, []protocol.Definition{lightning})
	afc := -2

	results := d.Noise(NoiseFrame{Hex: "DA5A2866AAA290AAAAAA", RFMode: "Bresser_lightning", AFC: &afc})
	if len(results) != 1 {
		t.Fatalf("Noise() returned %d results, want 1", len(results))
	}
	r := results[0]
	if r.ProtocolID != "131" || r.Payload != "W131#70F082CC00083A000000" {
		t.Errorf("Noise() = %s %s", r.ProtocolID, r.Payload)
	}
	if r.Meta["rfmode"] != "Bresser_lightning" || r.Meta["freq_afc"] != -3.0 {
		t.Errorf("Noise() meta = %v", r.Meta)
	}

	if results := d.Noise(NoiseFrame{Hex: "DA5A2866AAA290AAAAAA", RFMode: "Bresser_5in1"}); len(results) != 0 {
		t.Errorf("Noise() with other rf mode = %+v", results)
	}
	if results := d.Noise(NoiseFrame{Hex: "DA5A2866AAA290AAAAAB", RFMode: "Bresser_lightning"}); len(results) != 0 {
		t.Errorf("Noise() with bad digest = %+v", results)
	}
}

func TestNoiseExactLength(t *testing.T) {
	tests := []struct {
		name  string
		exact int
		found bool
	}{
		{"matching bit count", 80, true},
		{"shorter override", 8, false},
		{"hex digit count is not bits", 20, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := lightning
			def.ExactLength = tt.exact
			results := newDemod(t, []protocol.Definition{def}).Noise(NoiseFrame{Hex: "DA5A2866AAA290AAAAAA", RFMode: "Bresser_lightning"})
			if !tt.found {
				if len(results) != 0 {
					t.Errorf("Noise() = %+v, want nothing", results)
				}
				return
			}
			if len(results) != 1 || results[0].BitLength != 80 || results[0].Payload != "W131#70F082CC00083A000000" {
				t.Errorf("Noise() = %+v, want W131#70F082CC00083A000000 (80 bits)", results)
			}
		})
	}
}

func TestFreqAFC(t *testing.T) {
	tests := []struct {
		input    int
		expected float64
	}{
		{-2, -3},
		{0, 0},
		{10, 16},
	}
	for _, tt := range tests {
		if got := FreqAFC(tt.input); got != tt.expected {
			t.Errorf("FreqAFC(%d) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestNewRejectsUnknownMethods(t *testing.T) {
	tests := []struct {
		name string
		def  protocol.Definition
	}{
		{"manchester", protocol.Definition{ID: "x", Format: protocol.FormatManchester, Method: "mcBit2Nothing"}},
		{"noise", protocol.Definition{ID: "x", Format: protocol.FormatNoise, Method: "Bresser9in1"}},
		{"postdemodulation", protocol.Definition{ID: "x", Format: protocol.FormatUnsynced, One: []float64{1, -1}, PostDemodulation: "postDemo_Nothing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := protocol.MustCatalog([]protocol.Definition{tt.def})
			if _, err := New(c, zerolog.Nop()); err == nil {
				t.Errorf("New() expected error")
			}
		})
	}
}

func TestBuiltinCatalogResolves(t *testing.T) {
	if _, err := New(protocol.Builtin(), zerolog.Nop()); err != nil {
		t.Fatalf("New(Builtin()) error = %v", err)
	}
}
