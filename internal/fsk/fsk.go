// Package fsk verifies and reshapes the xFSK payloads the CC1101 packet
// engine delivers in MN messages.
package fsk

import (
	"fmt"

	"github.com/dbehnke/signalduino/internal/codec"
	"github.com/dbehnke/signalduino/internal/protocol"
	"github.com/dbehnke/signalduino/internal/sderr"
)

// Check validates the MN hex data of one frame and returns the payload
// to dispatch
type Check func(def *protocol.Definition, hex string) (string, error)

var registry = map[string]Check{
	"BresserLightning": BresserLightning,
	"Bresser7in1":      Bresser7in1,
	"Bresser6in1":      Bresser6in1,
	"Bresser5in1":      Bresser5in1,
	"LaCrosse":         LaCrosse,
	"PCA301":           PCA301,
}

// Lookup resolves an MN check by method name
func Lookup(name string) (Check, bool) {
	c, ok := registry[name]
	return c, ok
}

func decode(def *protocol.Definition, hex string, minBytes int) ([]byte, error) {
	if len(hex) < minBytes*2 {
		return nil, &sderr.LengthExceededError{Protocol: def.ID, Length: len(hex), Max: minBytes * 2, Reason: protocol.ReasonTooShort}
	}
	return codec.HexToBytes(hex[:minBytes*2])
}

func failed(def *protocol.Definition, check, reason string) error {
	return &sderr.ChecksumFailure{Protocol: def.ID, Check: check, Reason: reason}
}

func whiten(msg []byte) []byte {
	out := make([]byte, len(msg))
	for i, b := range msg {
		out[i] = b ^ 0xAA
	}
	return out
}

// BresserLightning de-whitens ten bytes and verifies the LFSR digest
func BresserLightning(def *protocol.Definition, hex string) (string, error) {
	raw, err := decode(def, hex, 10)
	if err != nil {
		return "", err
	}
	msg := whiten(raw)

	chk := uint16(msg[0])<<8 | uint16(msg[1])
	if digest := codec.LFSRDigest16(msg[2:10], 0x8810, 0xABF9) ^ chk; digest != 0x899E {
		return "", failed(def, "lfsr", fmt.Sprintf("digest 0x%04X, want 0x899E", digest))
	}
	return codec.BytesToHex(msg), nil
}

// Bresser7in1 de-whitens 25 bytes and verifies the LFSR digest
func Bresser7in1(def *protocol.Definition, hex string) (string, error) {
	raw, err := decode(def, hex, 25)
	if err != nil {
		return "", err
	}
	msg := whiten(raw)

	chk := uint16(msg[0])<<8 | uint16(msg[1])
	if digest := codec.LFSRDigest16(msg[2:25], 0x8810, 0xBA95) ^ chk; digest != 0x6DF1 {
		return "", failed(def, "lfsr", fmt.Sprintf("digest 0x%04X, want 0x6DF1", digest))
	}
	return codec.BytesToHex(msg), nil
}

// Bresser6in1 verifies the CRC-16 over bytes 2..16 and the byte sum over
// bytes 2..17
func Bresser6in1(def *protocol.Definition, hex string) (string, error) {
	msg, err := decode(def, hex, 18)
	if err != nil {
		return "", err
	}

	want := uint16(msg[0])<<8 | uint16(msg[1])
	if crc := codec.CRC16(msg[2:17], 0x1021, 0x0000); crc != want {
		return "", failed(def, "crc16", fmt.Sprintf("0x%04X != 0x%04X", crc, want))
	}
	if sum := codec.AddBytes(msg[2:18]) & 0xFF; sum != 0xFF {
		return "", failed(def, "sum", fmt.Sprintf("0x%02X != 0xFF", sum))
	}
	return codec.BytesToHex(msg), nil
}

// Bresser5in1 checks that the first 13 bytes are the complement of the
// next 13 and that byte 13 holds the bit count of the payload
func Bresser5in1(def *protocol.Definition, hex string) (string, error) {
	msg, err := decode(def, hex, 26)
	if err != nil {
		return "", err
	}

	for i := 0; i < 13; i++ {
		if msg[i]^msg[i+13] != 0xFF {
			return "", failed(def, "inverted", fmt.Sprintf("byte %d does not match its complement", i))
		}
	}
	if bits := codec.PopCount(msg[14:26]); bits != int(msg[13]) {
		return "", failed(def, "bitsum", fmt.Sprintf("%d != %d", bits, msg[13]))
	}
	return codec.BytesToHex(msg[14:26]), nil
}

// LaCrosse verifies the CRC-8 of a TX29/TX35 frame and converts it into
// the LaCrosse module line format
func LaCrosse(def *protocol.Definition, hex string) (string, error) {
	msg, err := decode(def, hex, 5)
	if err != nil {
		return "", err
	}
	if crc := codec.CRC8(msg[:4], 0x31, 0); crc != msg[4] {
		return "", failed(def, "crc8", fmt.Sprintf("0x%02X != 0x%02X", crc, msg[4]))
	}

	addr := int(msg[0]&0x0F)<<2 | int(msg[1]&0xC0)>>6
	temp := float64(int(msg[1]&0x0F)*100+int(msg[2]>>4)*10+int(msg[2]&0x0F))/10 - 40
	if temp >= 60 || temp <= -40 {
		return "", failed(def, "range", fmt.Sprintf("temperature %.1f out of range", temp))
	}

	humidity := int(msg[3])
	battery := int(msg[1]&0x20) << 2
	sensorType := 1
	if humidity&0x7F == 125 {
		sensorType = 2
	}

	t := (int(temp*10+0.5*sign(temp)) + 1000) & 0xFFFF
	return fmt.Sprintf("OK 9 %d %d %d %d %d", addr, sensorType|battery, t>>8, t&0xFF, humidity), nil
}

// PCA301 verifies the CRC-16 of a PCA301 power plug frame and converts it
// into the PCA301 module line format
func PCA301(def *protocol.Definition, hex string) (string, error) {
	msg, err := decode(def, hex, 12)
	if err != nil {
		return "", err
	}

	want := uint16(msg[10])<<8 | uint16(msg[11])
	if crc := codec.CRC16(msg[:10], 0x8005, 0x0000); crc != want {
		return "", failed(def, "crc16", fmt.Sprintf("0x%04X != 0x%04X", crc, want))
	}

	h := codec.BytesToHex(msg)
	return fmt.Sprintf("OK 24 %d %d %d %d %d %c %d %d %d %d %s",
		msg[0], msg[1], msg[2], msg[3], msg[4], h[11],
		msg[6], msg[7], msg[8], msg[9], h[20:24]), nil
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
