package codec

import (
	"testing"
)

func TestCRC8(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		poly     byte
		expected byte
	}{
		{
			name:     "empty data",
			input:    []byte{},
			poly:     0x31,
			expected: 0x00,
		},
		{
			name:     "check string",
			input:    []byte("123456789"),
			poly:     0x31,
			expected: 0xA2,
		},
		{
			name:     "LaCrosse frame",
			input:    []byte{0x9A, 0x06, 0x15, 0x6A},
			poly:     0x31,
			expected: 0x0E,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CRC8(tt.input, tt.poly, 0x00)
			if result != tt.expected {
				t.Errorf("CRC8() = 0x%02X, want 0x%02X", result, tt.expected)
			}
		})
	}
}

func TestCRC16(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		poly     uint16
		init     uint16
		expected uint16
	}{
		{
			name:     "CCITT-FALSE check string",
			input:    []byte("123456789"),
			poly:     0x1021,
			init:     0xFFFF,
			expected: 0x29B1,
		},
		{
			name:     "UMTS check string",
			input:    []byte("123456789"),
			poly:     0x8005,
			init:     0x0000,
			expected: 0xFEE8,
		},
		{
			name:     "PCA301 frame",
			input:    []byte{0x01, 0x05, 0x03, 0x20, 0x34, 0x00, 0x00, 0x00, 0x00, 0x00},
			poly:     0x8005,
			init:     0x0000,
			expected: 0x8DCB,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CRC16(tt.input, tt.poly, tt.init)
			if result != tt.expected {
				t.Errorf("CRC16() = 0x%04X, want 0x%04X", result, tt.expected)
			}
		})
	}
}

func TestLFSRDigest16(t *testing.T) {
	// Bresser lightning frame after whitening removal
	msg := []byte{0x70, 0xF0, 0x82, 0xCC, 0x00, 0x08, 0x3A, 0x00, 0x00, 0x00}

	chk := uint16(msg[0])<<8 | uint16(msg[1])
	digest := LFSRDigest16(msg[2:10], 0x8810, 0xABF9)
	if got := chk ^ digest; got != 0x899E {
		t.Errorf("chk ^ LFSRDigest16() = 0x%04X, want 0x899E", got)
	}
}

func TestByteHelpers(t *testing.T) {
	data := []byte{0x0F, 0xF0, 0x01}
	if got := AddBytes(data); got != 0x100 {
		t.Errorf("AddBytes() = 0x%X, want 0x100", got)
	}
	if got := XorBytes(data); got != 0xFE {
		t.Errorf("XorBytes() = 0x%02X, want 0xFE", got)
	}
	if got := PopCount(data); got != 9 {
		t.Errorf("PopCount() = %d, want 9", got)
	}
}
