package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// IsCompressed reports whether payload uses the firmware's compressed
// encoding (lower-case second tag letter: Ms, Mu, Mc, Mo)
func IsCompressed(payload string) bool {
	if len(payload) < 3 || payload[0] != 'M' || payload[2] != ';' {
		return false
	}
	switch payload[1] {
	case 's', 'u', 'c', 'o':
		return true
	}
	return false
}

// Decompress expands a compressed frame payload into the plain field
// form. Pulse fields are three bytes: a marker byte (bit 7 set) carrying
// the pulse index in bits 0-2, a sign in bit 5 and bit 7 of the value in
// bit 4, followed by the low and high seven value bits.
func Decompress(payload string) string {
	parts := strings.Split(payload, ";")
	out := make([]string, 0, len(parts))

	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 && len(part) == 2 && part[0] == 'M' {
			out = append(out, "M"+strings.ToUpper(part[1:]))
			continue
		}

		c := part[0]
		switch {
		case c > 127 && len(part) >= 3:
			value := int(part[2]&0x7F)<<8 | int(c&0x10)<<3 | int(part[1]&0x7F)
			if c&0x20 != 0 {
				value = -value
			}
			out = append(out, fmt.Sprintf("P%d=%d", c&0x07, value))

		case (c == 'D' || c == 'd') && !strings.HasPrefix(part[1:], "="):
			var sb strings.Builder
			for j := 1; j < len(part); j++ {
				fmt.Fprintf(&sb, "%02X", part[j])
			}
			digits := sb.String()
			if c == 'd' && len(digits) > 0 {
				digits = digits[:len(digits)-1]
			}
			out = append(out, "D="+digits)

		case (c == 'C' || c == 'S') && len(part) == 2 && part[1] >= '0' && part[1] <= '9':
			out = append(out, string(c)+"P="+part[1:])

		case (c == 'R' || c == 'F' || c == 'K') && len(part) >= 2 && len(part) <= 3 && !strings.Contains(part, "="):
			v, err := strconv.ParseUint(part[1:], 16, 8)
			if err != nil {
				out = append(out, part)
				continue
			}
			out = append(out, fmt.Sprintf("%c=%d", c, v))

		default:
			out = append(out, part)
		}
	}
	return strings.Join(out, ";") + ";"
}
