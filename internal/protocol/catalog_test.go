package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/dbehnke/signalduino/internal/sderr"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog([]Definition{
		{ID: "9990", Format: FormatManchester, LengthMin: 2, LengthMax: 8},
		{ID: "9989", Format: FormatManchester, LengthMin: 1, LengthMax: 24, PolarityInvert: true, ClockMin: 300, ClockMax: 360, Method: "MCRaw"},
		{ID: "9991", Format: FormatManchester, ExactLength: 32, Method: "Grothe"},
		{ID: "9992", Format: FormatManchester, Disabled: true},
	})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	return c
}

func TestCatalogOrdering(t *testing.T) {
	c := testCatalog(t)

	ids := c.IDs()
	expected := []string{"9991", "9990", "9989", "9992"}
	if strings.Join(ids, ",") != strings.Join(expected, ",") {
		t.Errorf("IDs() = %v, want %v", ids, expected)
	}

	active := c.ByFormat(FormatManchester)
	if len(active) != 3 {
		t.Fatalf("ByFormat() returned %d protocols, want 3", len(active))
	}
	if active[0].ID != "9991" {
		t.Errorf("ByFormat()[0] = %s, want exact-length protocol 9991", active[0].ID)
	}
	if d, _ := c.Get("9990"); d.Name != "Protocol_9990" {
		t.Errorf("default name = %q", d.Name)
	}
}

func TestNewCatalogRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
	}{
		{"missing id", []Definition{{Format: FormatManchester}}},
		{"duplicate id", []Definition{{ID: "1", Format: FormatManchester}, {ID: "1", Format: FormatManchester}}},
		{"synced without sync", []Definition{{ID: "1", Format: FormatSynced, One: []float64{1, -2}}}},
		{"unsynced without one", []Definition{{ID: "1", Format: FormatUnsynced}}},
		{"bad modulematch", []Definition{{ID: "1", Format: FormatManchester, ModuleMatch: "^(W"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.defs); err == nil {
				t.Errorf("NewCatalog() expected error")
			}
		})
	}
}

func TestLengthInRange(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		id       string
		length   int
		expected string
	}{
		{"9990", 1, ReasonTooShort},
		{"9990", 2, ""},
		{"9990", 8, ""},
		{"9990", 9, ReasonTooLong},
		{"9991", 31, "message must be 32 bits, got 31"},
		{"9991", 32, ""},
		{"0000", 10, ReasonNoProtocol},
	}

	for _, tt := range tests {
		err := c.LengthInRange(tt.id, tt.length)
		got := ""
		if err != nil {
			got = err.Error()
		}
		if got != tt.expected {
			t.Errorf("LengthInRange(%s, %d) = %q, want %q", tt.id, tt.length, got, tt.expected)
		}
	}
}

func TestMCRaw(t *testing.T) {
	c := testCatalog(t)

	result, err := c.MCRaw("9989", "001010101010010010100111", 24)
	if err != nil {
		t.Fatalf("MCRaw() error = %v", err)
	}
	if result != "2AA4A7" {
		t.Errorf("MCRaw() = %q, want 2AA4A7", result)
	}

	var missing *sderr.MissingDataError
	if _, err := c.MCRaw("", "1010", 4); !errors.As(err, &missing) || err.Error() != "no protocolId provided" {
		t.Errorf("MCRaw(no id) error = %v", err)
	}
	if _, err := c.MCRaw("4711", "1010", 4); err == nil || err.Error() != ReasonNoProtocol {
		t.Errorf("MCRaw(unknown id) error = %v", err)
	}
	if _, err := c.MCRaw("9989", "", 0); err == nil || err.Error() != "no bitData provided" {
		t.Errorf("MCRaw(no bits) error = %v", err)
	}

	var exceeded *sderr.LengthExceededError
	if _, err := c.MCRaw("9990", "1010101010", 10); !errors.As(err, &exceeded) {
		t.Errorf("MCRaw(too long) error = %v, want LengthExceededError", err)
	}
}

func TestClockInRange(t *testing.T) {
	c := testCatalog(t)
	d, _ := c.Get("9989")

	tests := []struct {
		clock    int
		expected bool
	}{
		{300, false},
		{301, true},
		{340, true},
		{360, false},
	}
	for _, tt := range tests {
		if got := d.ClockInRange(tt.clock); got != tt.expected {
			t.Errorf("ClockInRange(%d) = %v, want %v", tt.clock, got, tt.expected)
		}
	}

	if nd, _ := c.Get("9990"); !nd.ClockInRange(10) {
		t.Errorf("ClockInRange() without window should accept any clock")
	}
}

func TestBuiltin(t *testing.T) {
	c := Builtin()
	if c.Len() == 0 {
		t.Fatal("Builtin() is empty")
	}

	for _, id := range []string{"3.1", "44", "119", "131"} {
		if !c.Exists(id) {
			t.Errorf("Builtin() missing protocol %s", id)
		}
	}
	for _, f := range []Format{FormatSynced, FormatUnsynced, FormatManchester, FormatNoise} {
		if len(c.ByFormat(f)) == 0 {
			t.Errorf("Builtin() has no %s protocols", f)
		}
	}

	d, _ := c.Get("44")
	if !d.MatchesModule("W44#0123456789ABCDEF01") || d.MatchesModule("W44#01") {
		t.Errorf("modulematch for 44 not applied")
	}
}
