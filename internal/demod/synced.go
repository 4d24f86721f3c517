package demod

import (
	"math"
	"strings"

	"github.com/dbehnke/signalduino/internal/codec"
	"github.com/dbehnke/signalduino/internal/pattern"
	"github.com/dbehnke/signalduino/internal/protocol"
)

// Synced demodulates an MS frame. The first protocol, in priority order,
// that yields a valid message wins.
func (d *Demodulator) Synced(f PulseFrame) []Result {
	var clock float64
	found := false
	for _, p := range f.Pulses {
		if p.ID == f.ClockID {
			clock = math.Abs(p.Value)
			found = true
			break
		}
	}
	if !found || clock == 0 || f.Data == "" {
		d.logger.Debug().Str("cp", f.ClockID).Msg("MS frame without usable clock pulse")
		return nil
	}
	norm := normalize(f.Pulses, clock)

	for _, def := range pattern.MatchAll(d.catalog.ByFormat(protocol.FormatSynced), norm, f.Data) {
		if r, ok := d.synced(def, norm, f.Data, clock); ok {
			return []Result{r}
		}
	}
	return nil
}

func (d *Demodulator) synced(def *protocol.Definition, norm []pattern.Pulse, data string, clock float64) (Result, bool) {
	log := d.logger.With().Str("protocol", def.ID).Logger()

	if def.ClockAbs > 0 && !pattern.InTolerance(def.ClockAbs, clock, clock*def.ClockTolerance()) {
		log.Debug().Float64("clock", clock).Float64("want", def.ClockAbs).Msg("MS clock mismatch")
		return Result{}, false
	}

	width := def.SignalWidth()
	if width == 0 {
		return Result{}, false
	}

	lookup := make(map[string]string)
	ends := newEndLookup()
	start := 0

	syms := append([]symbol{{def.Sync, "", "sync"}}, dataSymbols(def)...)
	for _, s := range syms {
		if len(s.pattern) == 0 {
			continue
		}
		pstr, ok := pattern.Exists(s.pattern, norm, data)
		if !ok {
			if s.name == "float" {
				continue
			}
			log.Debug().Str("key", s.name).Msg("MS pattern not found")
			return Result{}, false
		}
		lookup[pstr] = s.rep
		ends.add(pstr, s.rep)

		if s.name == "sync" {
			start = strings.Index(data, pstr) + len(pstr)
			min := def.LengthMin
			if def.HasExactLength() {
				min = def.ExactLength
			}
			if float64(min) > float64(len(data)-start)/float64(width) {
				log.Debug().Int("start", start).Msg("MS message too short after sync")
				return Result{}, false
			}
			ends = newEndLookup()
		}
	}

	var bits strings.Builder
	for i := start; i < len(data); i += width {
		end := i + width
		if end > len(data) {
			end = len(data)
		}
		chunk := data[i:end]

		if rep, ok := lookup[chunk]; ok {
			bits.WriteString(rep)
			continue
		}
		if !def.ReconstructBit {
			break
		}
		if len(chunk) == width {
			chunk = chunk[:width-1]
		}
		rep, ok := ends.get(chunk)
		if !ok {
			break
		}
		bits.WriteString(rep)
	}

	msg := bits.String()
	if msg == "" {
		return Result{}, false
	}
	if err := def.LengthInRange(len(msg)); err != nil {
		log.Debug().Int("bits", len(msg)).Err(err).Msg("MS length rejected")
		return Result{}, false
	}
	msg = pad(msg, def.Padding())

	check := ""
	if v, ok := d.pd[def.ID]; ok {
		out, ok := v("Protocol_"+def.ID, msg)
		if !ok {
			log.Debug().Str("check", def.PostDemodulation).Msg("MS postDemodulation rejected frame")
			return Result{}, false
		}
		if out != "" {
			msg = out
		}
		check = def.PostDemodulation
	}

	hex, err := codec.BinToHex(msg)
	if err != nil {
		log.Debug().Err(err).Msg("MS payload not convertible")
		return Result{}, false
	}

	return Result{
		ProtocolID: def.ID,
		Payload:    def.Preamble + hex + def.Postamble,
		BitLength:  len(msg),
		Clock:      clock,
		Check:      check,
	}, true
}
