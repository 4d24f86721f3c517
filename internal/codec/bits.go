package codec

import (
	"strings"

	"github.com/dbehnke/signalduino/internal/sderr"
)

const hexDigits = "0123456789ABCDEF"

// BinToHex converts a bit string into its hex representation.
// Nibbles are cut from the least-significant end, so a short leading group
// stands for its own value ("101" -> "5"). Leading zero nibbles are kept.
func BinToHex(bits string) (string, error) {
	if bits == "" {
		return "", &sderr.InvalidInputError{Op: "BinToHex", Reason: "empty bit string"}
	}
	if !IsBits(bits) {
		return "", &sderr.InvalidInputError{Op: "BinToHex", Input: bits, Reason: "characters outside {0,1}"}
	}

	n := (len(bits) + 3) / 4
	out := make([]byte, n)
	end := len(bits)
	for i := n - 1; i >= 0; i-- {
		start := end - 4
		if start < 0 {
			start = 0
		}
		out[i] = hexDigits[BitsToInt(bits[start:end])]
		end = start
	}
	return string(out), nil
}

// HexToBin expands every hex digit into four bits
func HexToBin(hex string) (string, error) {
	if hex == "" {
		return "", &sderr.InvalidInputError{Op: "HexToBin", Reason: "empty hex string"}
	}

	var sb strings.Builder
	sb.Grow(len(hex) * 4)
	for i := 0; i < len(hex); i++ {
		v := hexValue(hex[i])
		if v < 0 {
			return "", &sderr.InvalidInputError{Op: "HexToBin", Input: hex, Reason: "not a hex digit"}
		}
		for b := 3; b >= 0; b-- {
			if v&(1<<b) != 0 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
	}
	return sb.String(), nil
}

// HexToBytes decodes an even-length hex string
func HexToBytes(hex string) ([]byte, error) {
	if len(hex)%2 != 0 {
		return nil, &sderr.InvalidInputError{Op: "HexToBytes", Input: hex, Reason: "odd length"}
	}
	out := make([]byte, len(hex)/2)
	for i := range out {
		hi, lo := hexValue(hex[2*i]), hexValue(hex[2*i+1])
		if hi < 0 || lo < 0 {
			return nil, &sderr.InvalidInputError{Op: "HexToBytes", Input: hex, Reason: "not a hex digit"}
		}
		out[i] = byte(hi<<4 | lo)
	}
	return out, nil
}

// BytesToHex encodes bytes as upper-case hex
func BytesToHex(data []byte) string {
	out := make([]byte, len(data)*2)
	for i, b := range data {
		out[2*i] = hexDigits[b>>4]
		out[2*i+1] = hexDigits[b&0x0F]
	}
	return string(out)
}

// InvertHex flips the polarity of a hex string nibble by nibble (0 <-> F)
func InvertHex(hex string) string {
	out := make([]byte, len(hex))
	for i := 0; i < len(hex); i++ {
		v := hexValue(hex[i])
		if v < 0 {
			out[i] = hex[i]
			continue
		}
		out[i] = hexDigits[15-v]
	}
	return string(out)
}

// Dec2BinParity encodes n as eight bits, MSB first, followed by an even
// parity bit.
func Dec2BinParity(n int) (string, error) {
	if n < 0 || n > 255 {
		return "", &sderr.RangeError{Op: "Dec2BinParity", Value: n, Min: 0, Max: 255}
	}

	bits := IntToBits(n, 8)
	if strings.Count(bits, "1")%2 == 0 {
		return bits + "0", nil
	}
	return bits + "1", nil
}

// MC2DMC remodulates a Manchester bit sequence into differential form.
// Output bit i is 1 when input bits i and i+1 are equal, so the result is
// one bit shorter than the input and identical for a signal and its
// inverse.
func MC2DMC(bits string) (string, error) {
	if bits == "" {
		return "", &sderr.MissingDataError{Reason: "no bitData provided"}
	}
	if !IsBits(bits) {
		return "", &sderr.InvalidInputError{Op: "MC2DMC", Input: bits, Reason: "characters outside {0,1}"}
	}

	out := make([]byte, 0, len(bits)-1)
	for i := 0; i+1 < len(bits); i++ {
		if bits[i] == bits[i+1] {
			out = append(out, '1')
		} else {
			out = append(out, '0')
		}
	}
	return string(out), nil
}

// IsBits reports whether s only contains '0' and '1'
func IsBits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return false
		}
	}
	return true
}

// BitsToInt reads an MSB-first bit string. Non-'1' characters count as 0.
func BitsToInt(bits string) int {
	v := 0
	for i := 0; i < len(bits); i++ {
		v <<= 1
		if bits[i] == '1' {
			v |= 1
		}
	}
	return v
}

// IntToBits renders the low width bits of v, MSB first
func IntToBits(v, width int) string {
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		if v&1 == 1 {
			out[i] = '1'
		} else {
			out[i] = '0'
		}
		v >>= 1
	}
	return string(out)
}

// ReverseBits returns bits in reverse order
func ReverseBits(bits string) string {
	out := make([]byte, len(bits))
	for i := 0; i < len(bits); i++ {
		out[len(bits)-1-i] = bits[i]
	}
	return string(out)
}

// ParityEven reports whether bits holds an even number of ones
func ParityEven(bits string) bool {
	return strings.Count(bits, "1")%2 == 0
}

// BitsToBytes packs an MSB-first bit string into bytes. A trailing partial
// byte is dropped.
func BitsToBytes(bits string) []byte {
	out := make([]byte, len(bits)/8)
	for i := range out {
		out[i] = byte(BitsToInt(bits[i*8 : i*8+8]))
	}
	return out
}

func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	}
	return -1
}

// IsHex reports whether s is a non-empty hex string
func IsHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if hexValue(s[i]) < 0 {
			return false
		}
	}
	return true
}
