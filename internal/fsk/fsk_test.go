package fsk

import (
	"errors"
	"testing"

	"github.com/dbehnke/signalduino/internal/protocol"
	"github.com/dbehnke/signalduino/internal/sderr"
)

func TestChecks(t *testing.T) {
	tests := []struct {
		name     string
		check    Check
		input    string
		expected string
	}{
		{"bresser lightning", BresserLightning, "DA5A2866AAA290AAAAAA", "70F082CC00083A000000"},
		{"bresser 7in1", Bresser7in1, "582CB89EFCD23016745AAB89EFCD23016745BA8A9AEAFACADA", "F286123456789ABCDEF00123456789ABCDEF10203040506070"},
		{"bresser 6in1", Bresser6in1, "BD78E76B2518241339F00000000000001000", "BD78E76B2518241339F00000000000001000"},
		{"bresser 5in1", Bresser5in1, "EE4197FFF3FFBEFFFFEFFFE5FF11BE68000C0041000010001A00", "BE68000C0041000010001A00"},
		{"lacrosse", LaCrosse, "9A06156A0E", "OK 9 40 1 4 191 106"},
		{"pca301", PCA301, "010503203400000000008DCB", "OK 24 1 5 3 32 52 0 0 0 0 0 8DCB"},
	}

	def := &protocol.Definition{ID: "test"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.check(def, tt.input)
			if err != nil {
				t.Fatalf("check error = %v", err)
			}
			if result != tt.expected {
				t.Errorf("check = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestChecksRejectCorruption(t *testing.T) {
	tests := []struct {
		name  string
		check Check
		input string
	}{
		{"bresser lightning", BresserLightning, "DA5A2866AAA290AAAAAB"},
		{"bresser 7in1", Bresser7in1, "582CB89EFCD23016745AAB89EFCD23016745BA8A9AEAFACADB"},
		{"bresser 6in1 crc", Bresser6in1, "BD79E76B2518241339F00000000000001000"},
		{"bresser 5in1 complement", Bresser5in1, "EF4197FFF3FFBEFFFFEFFFE5FF11BE68000C0041000010001A00"},
		{"lacrosse", LaCrosse, "9A06156A0F"},
		{"pca301", PCA301, "010503203400000000008DCC"},
	}

	def := &protocol.Definition{ID: "test"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.check(def, tt.input)
			var cf *sderr.ChecksumFailure
			if !errors.As(err, &cf) {
				t.Errorf("check error = %v, want ChecksumFailure", err)
			}
		})
	}
}

func TestChecksRejectShortInput(t *testing.T) {
	def := &protocol.Definition{ID: "test"}
	for name, check := range registry {
		_, err := check(def, "DA5A")
		var short *sderr.LengthExceededError
		if !errors.As(err, &short) {
			t.Errorf("%s(short) error = %v, want LengthExceededError", name, err)
		}
	}
}

func TestLookup(t *testing.T) {
	if _, ok := Lookup("BresserLightning"); !ok {
		t.Errorf("Lookup(BresserLightning) not found")
	}
	if _, ok := Lookup("Bresser8in1"); ok {
		t.Errorf("Lookup(Bresser8in1) should not resolve")
	}
}
