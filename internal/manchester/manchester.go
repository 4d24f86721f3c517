// Package manchester contains the per-protocol decoders for frames the
// firmware already demodulated as Manchester (MC messages).
package manchester

import (
	"strings"

	"github.com/dbehnke/signalduino/internal/codec"
	"github.com/dbehnke/signalduino/internal/protocol"
	"github.com/dbehnke/signalduino/internal/sderr"
)

// Decoder turns the bit stream of one MC frame into a payload. bitCount
// is the number of bits extracted from the frame hex.
type Decoder func(name, bits string, def *protocol.Definition, bitCount int) (string, error)

// Reasons reported back to the caller, in the wording the FHEM modules use
const (
	reasonShort = " message is to short"
	reasonLong  = " message is to long"
)

var registry = map[string]Decoder{
	"Funkbus":   Funkbus,
	"Sainlogic": Sainlogic,
	"AS":        AS,
	"Hideki":    Hideki,
	"Maverick":  Maverick,
	"OSV1":      OSV1,
	"OSV2o3":    OSV2o3,
	"OSPIR":     OSPIR,
	"Grothe":    Grothe,
	"SomfyRTS":  SomfyRTS,
	"TFA":       TFA,
	"MCRaw":     MCRaw,
}

// Lookup resolves a decoder by the method name of a protocol definition
func Lookup(name string) (Decoder, bool) {
	d, ok := registry[name]
	return d, ok
}

func reject(def *protocol.Definition, reason string) error {
	return &sderr.ChecksumFailure{Protocol: def.ID, Reason: reason}
}

// checkRange applies the protocol length policy to n. An exact-length
// override replaces the min/max window entirely.
func checkRange(def *protocol.Definition, n int) error {
	if def.HasExactLength() {
		if n != def.ExactLength {
			return &sderr.LengthMismatchError{Protocol: def.ID, Length: n, Want: def.ExactLength}
		}
		return nil
	}
	if n < def.LengthMin {
		return &sderr.LengthExceededError{Protocol: def.ID, Length: n, Max: def.LengthMin, Reason: reasonShort}
	}
	if def.LengthMax > 0 && n > def.LengthMax {
		return &sderr.LengthExceededError{Protocol: def.ID, Length: n, Max: def.LengthMax, Reason: reasonLong}
	}
	return nil
}

func count(bits string, bitCount int) int {
	if bitCount <= 0 {
		return len(bits)
	}
	return bitCount
}

// rangedHex is the common body of the decoders that only bound the length
func rangedHex(bits string, def *protocol.Definition, bitCount int) (string, error) {
	if err := checkRange(def, count(bits, bitCount)); err != nil {
		return "", err
	}
	return codec.BinToHex(bits)
}

// Hideki decodes Hideki weather sensors
func Hideki(name, bits string, def *protocol.Definition, bitCount int) (string, error) {
	return rangedHex(bits, def, bitCount)
}

// Maverick decodes Maverick BBQ thermometers
func Maverick(name, bits string, def *protocol.Definition, bitCount int) (string, error) {
	return rangedHex(bits, def, bitCount)
}

// OSV1 decodes Oregon Scientific v1 sensors
func OSV1(name, bits string, def *protocol.Definition, bitCount int) (string, error) {
	return rangedHex(bits, def, bitCount)
}

// OSV2o3 decodes Oregon Scientific v2 and v3 sensors
func OSV2o3(name, bits string, def *protocol.Definition, bitCount int) (string, error) {
	return rangedHex(bits, def, bitCount)
}

// OSPIR decodes Oregon Scientific PIR motion sensors
func OSPIR(name, bits string, def *protocol.Definition, bitCount int) (string, error) {
	return rangedHex(bits, def, bitCount)
}

// MCRaw is the plain hex output bounded by the protocol maximum length
func MCRaw(name, bits string, def *protocol.Definition, bitCount int) (string, error) {
	return protocol.RawOutput(def, bits, bitCount)
}

// Grothe accepts nothing but 32 bit frames, or the protocol's exact length
// when one is configured
func Grothe(name, bits string, def *protocol.Definition, bitCount int) (string, error) {
	want := 32
	if def.HasExactLength() {
		want = def.ExactLength
	}
	n := count(bits, bitCount)
	if n != want {
		return "", &sderr.LengthMismatchError{Protocol: def.ID, Length: n, Want: want}
	}
	return codec.BinToHex(bits)
}

// SomfyRTS drops the leading bit of a 57 bit frame and requires 56 bits
func SomfyRTS(name, bits string, def *protocol.Definition, bitCount int) (string, error) {
	if count(bits, bitCount) == 57 && len(bits) >= 57 {
		bits = bits[1:57]
	}
	if len(bits) != 56 {
		return "", &sderr.LengthMismatchError{Protocol: def.ID, Length: len(bits), Want: 56}
	}
	return codec.BinToHex(bits)
}

// Funkbus decodes Insta/Berker/Gira Funkbus frames. The stream is
// remodulated to differential Manchester, aligned, and verified with an
// overall parity and a nibble checksum.
func Funkbus(name, bits string, def *protocol.Definition, bitCount int) (string, error) {
	if err := checkRange(def, count(bits, bitCount)); err != nil {
		return "", err
	}

	s, err := codec.MC2DMC(bits)
	if err != nil {
		return "", err
	}

	if def.ID == "119" {
		pos := strings.Index(s, "01100")
		if pos < 0 || pos >= 5 {
			return "", reject(def, "wrong bits at begin")
		}
		s = "001" + s[pos:]
	} else {
		s = "0" + s
	}
	if len(s) < 48 {
		return "", reject(def, "wrong bits at begin")
	}

	var hex strings.Builder
	var xor, chk, parity byte
	for i := 0; i < 6; i++ {
		data := byte(codec.BitsToInt(s[i*8 : i*8+8]))
		hex.WriteString(codec.BytesToHex([]byte{data}))
		if i < 5 {
			xor ^= data
		} else {
			chk = data & 0x0F
			xor ^= data & 0xE0
			data &= 0xF0
		}
		for t := data; t != 0; t >>= 1 {
			parity ^= t & 1
		}
	}
	if parity == 1 {
		return "", reject(def, "parity error")
	}

	nibble := (xor>>4)&0x0F ^ xor&0x0F
	var result byte
	if nibble&0x8 != 0 {
		result ^= 0xC
	}
	if nibble&0x4 != 0 {
		result ^= 0x2
	}
	if nibble&0x2 != 0 {
		result ^= 0x8
	}
	if nibble&0x1 != 0 {
		result ^= 0x3
	}
	if result != chk {
		return "", reject(def, "checksum error")
	}
	return hex.String(), nil
}

// Sainlogic resynchronises short frames on the 010100 marker and trims
// them to 128 bits
func Sainlogic(name, bits string, def *protocol.Definition, bitCount int) (string, error) {
	n := count(bits, bitCount)
	if def.HasExactLength() {
		if err := checkRange(def, n); err != nil {
			return "", err
		}
	} else if def.LengthMax > 0 && n > def.LengthMax {
		return "", &sderr.LengthExceededError{Protocol: def.ID, Length: n, Max: def.LengthMax, Reason: reasonLong}
	}

	if n < 128 {
		start := strings.Index(bits, "010100")
		if start < 0 || start > 10 {
			return "", reject(def, "start 010100 not found")
		}
		for start < 10 {
			bits = "1" + bits
			start = strings.Index(bits, "010100")
		}
		if len(bits) > 128 {
			bits = bits[:128]
		}
		n = len(bits)
	}

	if n < def.LengthMin {
		return "", &sderr.LengthExceededError{Protocol: def.ID, Length: n, Max: def.LengthMin, Reason: reasonShort}
	}
	return codec.BinToHex(bits)
}

// AS decodes the self-built Arduino sensor. A 1100 sync after bit 16
// starts the message, which runs to the next sync.
func AS(name, bits string, def *protocol.Definition, bitCount int) (string, error) {
	start := indexFrom(bits, "1100", 16)
	if start < 0 {
		return rangedHex(bits, def, bitCount)
	}

	end := indexFrom(bits, "1100", start+16)
	if end < 0 {
		end = len(bits)
	}
	if err := checkRange(def, end-start); err != nil {
		return "", err
	}
	return codec.BinToHex(bits[start:])
}

// TFA decodes TFA 30.3208 style frames. The whole stream is scanned for
// repeated messages between the 1111111111101 separators and the first
// message received twice is returned.
func TFA(name, bits string, def *protocol.Definition, bitCount int) (string, error) {
	n := count(bits, bitCount)

	first := strings.Index(bits, "111111111101")
	if first < 0 {
		return "", reject(def, "sync not found")
	}
	preamblePos := first + 12
	messageEnd := -1
	retmsg := ""
	var messages []string

	i := 1
	for messageEnd < n {
		messageEnd = indexFrom(bits, "1111111111101", preamblePos)
		if messageEnd < preamblePos {
			messageEnd = n
		}

		part := slice(bits, preamblePos, messageEnd)
		if err := def.LengthInRange(messageEnd - preamblePos); err == nil {
			if h, err := codec.BinToHex(part); err == nil {
				messages = append(messages, h)
			}
		} else {
			retmsg = ", " + err.Error()
		}

		next := indexFrom(bits, "1101", messageEnd)
		if next >= 0 {
			preamblePos = next + 4
		} else {
			messageEnd = n
		}
		i++
	}
	if i == 10 {
		return "", reject(def, "loop error, please report this data "+bits)
	}

	seen := make(map[string]bool, len(messages))
	for _, m := range messages {
		if seen[m] {
			return m, nil
		}
		seen[m] = true
	}
	return "", reject(def, " no duplicate found"+retmsg)
}

func indexFrom(s, sub string, from int) int {
	if from < 0 {
		from = 0
	}
	if from > len(s) {
		return -1
	}
	idx := strings.Index(s[from:], sub)
	if idx < 0 {
		return -1
	}
	return idx + from
}

func slice(s string, from, to int) string {
	if from > len(s) {
		from = len(s)
	}
	if to > len(s) {
		to = len(s)
	}
	if to < from {
		return ""
	}
	return s[from:to]
}
