package demod

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dbehnke/signalduino/internal/codec"
	"github.com/dbehnke/signalduino/internal/pattern"
	"github.com/dbehnke/signalduino/internal/protocol"
)

// maxRepeat is the largest repetition count RE2 accepts
const maxRepeat = 1000

// Unsynced demodulates an MU frame. Every repeat found for the first
// protocol that decodes is returned, up to the repeat cap.
func (d *Demodulator) Unsynced(f PulseFrame) []Result {
	if f.Data == "" {
		return nil
	}
	for _, def := range d.catalog.ByFormat(protocol.FormatUnsynced) {
		results := d.unsynced(def, f)
		if len(results) == 0 {
			continue
		}
		if d.maxMuRepeat > 0 && len(results) > d.maxMuRepeat {
			results = results[:d.maxMuRepeat]
		}
		return results
	}
	return nil
}

func (d *Demodulator) unsynced(def *protocol.Definition, f PulseFrame) []Result {
	log := d.logger.With().Str("protocol", def.ID).Logger()

	clock := def.ClockAbs
	if clock <= 0 {
		clock = 1
	}
	norm := normalize(f.Pulses, clock)
	data := f.Data

	startStr := ""
	if len(def.Start) > 0 {
		pstr, ok := pattern.Exists(def.Start, norm, data)
		if !ok {
			return nil
		}
		data = data[strings.Index(data, pstr):]
		startStr = pstr
	}

	lookup := make(map[string]string)
	ends := newEndLookup()
	var parts []string
	for _, s := range dataSymbols(def) {
		if len(s.pattern) == 0 {
			continue
		}
		pstr, ok := pattern.Exists(s.pattern, norm, data)
		if !ok {
			if s.name == "float" {
				continue
			}
			log.Debug().Str("key", s.name).Msg("MU pattern not found")
			return nil
		}
		if _, seen := lookup[pstr]; !seen {
			parts = append(parts, pstr)
		}
		lookup[pstr] = s.rep
		ends.add(pstr, s.rep)
	}
	if len(parts) == 0 {
		return nil
	}

	re, err := signalRegexp(def, startStr, parts, ends)
	if err != nil {
		log.Warn().Err(err).Msg("MU signal regexp invalid")
		return nil
	}

	width := def.SignalWidth()
	var results []Result
	for _, m := range re.FindAllStringSubmatch(data, -1) {
		body := m[1]
		chunks := (len(body) + width - 1) / width
		if !def.HasExactLength() && def.LengthMax > 0 && chunks > def.LengthMax {
			log.Debug().Int("bits", chunks).Msg("MU repeat too long")
			continue
		}

		var bits strings.Builder
		for i := 0; i < len(body); i += width {
			end := i + width
			if end > len(body) {
				end = len(body)
			}
			chunk := body[i:end]
			if rep, ok := lookup[chunk]; ok {
				bits.WriteString(rep)
			} else if def.ReconstructBit {
				if rep, ok := ends.get(chunk); ok {
					bits.WriteString(rep)
				}
			}
		}
		msg := bits.String()
		if def.HasExactLength() {
			if err := def.LengthInRange(len(msg)); err != nil {
				log.Debug().Err(err).Msg("MU length rejected")
				continue
			}
		}

		check := ""
		if v, ok := d.pd[def.ID]; ok {
			out, ok := v("Protocol_"+def.ID, msg)
			if !ok {
				log.Debug().Str("check", def.PostDemodulation).Msg("MU postDemodulation rejected frame")
				continue
			}
			msg = out
			check = def.PostDemodulation
		}
		msg = pad(msg, def.Padding())

		payload := msg
		if !def.DispatchBin {
			hex, err := codec.BinToHex(msg)
			if err != nil {
				log.Debug().Err(err).Msg("MU payload not convertible")
				continue
			}
			if def.RemoveZero {
				hex = strings.TrimLeft(hex, "0")
			}
			payload = hex
		}
		payload = def.Preamble + payload + def.Postamble

		if !def.MatchesModule(payload) {
			log.Debug().Str("payload", payload).Msg("MU modulematch failed")
			continue
		}

		results = append(results, Result{
			ProtocolID: def.ID,
			Payload:    payload,
			BitLength:  len(msg),
			Clock:      clock,
			Check:      check,
		})
	}
	return results
}

// signalRegexp builds (?:start)((?:one|zero|float){min,}(?:end)?). When all
// parts share their first pulse the alternation is factored behind it.
func signalRegexp(def *protocol.Definition, start string, parts []string, ends *endLookup) (*regexp.Regexp, error) {
	inner := quoteJoin(parts)
	if len(parts[0]) > 1 {
		prefix := parts[0][:1]
		same := true
		for _, p := range parts {
			if len(p) != len(parts[0]) || !strings.HasPrefix(p, prefix) {
				same = false
				break
			}
		}
		if same {
			suffixes := make([]string, len(parts))
			for i, p := range parts {
				suffixes[i] = p[1:]
			}
			inner = regexp.QuoteMeta(prefix) + "(?:" + quoteJoin(suffixes) + ")"
		}
	}

	reconstruct := ""
	if def.ReconstructBit && len(ends.keys) > 0 {
		reconstruct = "(?:" + quoteJoin(ends.keys) + ")?"
	}

	min := def.LengthMin
	if def.HasExactLength() {
		min = def.ExactLength
	}
	if min < 0 {
		min = 0
	}
	if min > maxRepeat {
		min = maxRepeat
	}

	expr := "(?:" + regexp.QuoteMeta(start) + ")((?:" + inner + "){" + strconv.Itoa(min) + ",}" + reconstruct + ")"
	return regexp.Compile(expr)
}

func quoteJoin(parts []string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(quoted, "|")
}
