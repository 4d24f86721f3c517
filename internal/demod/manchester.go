package demod

import (
	"strings"

	"github.com/dbehnke/signalduino/internal/codec"
	"github.com/dbehnke/signalduino/internal/protocol"
)

// Manchester demodulates an MC frame. Polarity is inverted per protocol,
// and toggled again for "Mc" frames and V 3.2.x firmware.
func (d *Demodulator) Manchester(f ManchesterFrame) []Result {
	if f.Hex == "" || !codec.IsHex(f.Hex) {
		return nil
	}
	hex := strings.ToUpper(f.Hex)

	for _, def := range d.catalog.ByFormat(protocol.FormatManchester) {
		log := d.logger.With().Str("protocol", def.ID).Logger()

		if def.HasExactLength() {
			if err := def.LengthInRange(f.Length); err != nil {
				log.Debug().Err(err).Msg("MC length rejected")
				continue
			}
		} else if f.Length < def.LengthMin {
			log.Debug().Int("length", f.Length).Int("min", def.LengthMin).Msg("MC too short")
			continue
		}
		if !def.ClockInRange(f.Clock) {
			log.Debug().Int("clock", f.Clock).Msg("MC clock out of range")
			continue
		}

		invert := def.PolarityInvert
		if f.Type == "Mc" || strings.HasPrefix(f.Version, "V 3.2.") {
			invert = !invert
		}
		raw := hex
		if invert {
			raw = codec.InvertHex(raw)
		}
		bits, err := codec.HexToBin(raw)
		if err != nil {
			log.Debug().Err(err).Msg("MC hex conversion failed")
			continue
		}

		res, err := d.mc[def.ID]("Protocol_"+def.ID, bits, def, len(bits))
		if err != nil {
			log.Debug().Err(err).Msg("MC decoder rejected frame")
			continue
		}

		return []Result{{
			ProtocolID: def.ID,
			Payload:    def.Preamble + res,
			BitLength:  len(bits),
			Clock:      float64(f.Clock),
			Check:      def.Method,
		}}
	}
	return nil
}
