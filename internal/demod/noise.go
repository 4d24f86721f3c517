package demod

import (
	"math"
	"strings"

	"github.com/dbehnke/signalduino/internal/codec"
	"github.com/dbehnke/signalduino/internal/protocol"
)

// crystal and divider of the CC1101 frequency offset register
const (
	cc1101Crystal = 26000000
	afcDivider    = 16384
)

// FreqAFC converts the MN A= value to a frequency offset in kHz
func FreqAFC(a int) float64 {
	return math.Round(float64(cc1101Crystal) / afcDivider * float64(a) / 1000)
}

// Noise demodulates an MN frame against the protocols registered for the
// active rf mode
func (d *Demodulator) Noise(f NoiseFrame) []Result {
	if f.RFMode == "" || f.Hex == "" || !codec.IsHex(f.Hex) {
		return nil
	}
	hex := strings.ToUpper(f.Hex)

	for _, def := range d.catalog.ByFormat(protocol.FormatNoise) {
		if def.RFMode != f.RFMode {
			continue
		}
		log := d.logger.With().Str("protocol", def.ID).Logger()

		if !def.MatchesRaw(hex) {
			log.Debug().Msg("MN regexMatch failed")
			continue
		}

		data := hex
		if def.HasExactLength() {
			if err := def.LengthInRange(len(data) * 4); err != nil {
				log.Debug().Err(err).Msg("MN length rejected")
				continue
			}
		} else {
			if len(data) < def.LengthMin {
				log.Debug().Int("length", len(data)).Msg("MN too short")
				continue
			}
			if def.LengthMax > 0 && len(data) > def.LengthMax {
				data = data[:def.LengthMax]
			}
		}

		res, err := d.mn[def.ID](def, data)
		if err != nil {
			log.Debug().Err(err).Msg("MN check rejected frame")
			continue
		}

		meta := map[string]any{"rfmode": f.RFMode}
		if f.AFC != nil {
			meta["freq_afc"] = FreqAFC(*f.AFC)
		}
		return []Result{{
			ProtocolID: def.ID,
			Payload:    def.Preamble + res,
			BitLength:  len(data) * 4,
			Check:      def.Method,
			Meta:       meta,
		}}
	}
	return nil
}
