// Package parser classifies the lines read from a SIGNALduino, expands
// compressed frames and hands MS, MU, MC and MN frames to the
// demodulator.
package parser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dbehnke/signalduino/internal/codec"
	"github.com/dbehnke/signalduino/internal/demod"
	"github.com/dbehnke/signalduino/internal/pattern"
	"github.com/dbehnke/signalduino/internal/sderr"
)

var (
	frameRe  = regexp.MustCompile(`^\x02(M.;.*;)\x03$`)
	muRe     = regexp.MustCompile(`^MU;(?:P[0-7]=-?[0-9]{1,5};){2,8}((?:D=\d{2,};)|(?:CP=\d;)|(?:R=\d+;)|(?:O;)|(?:e;)|(?:p;)|(?:w=\d;))*$`)
	digitsRe = regexp.MustCompile(`^\d+$`)
	pulseRe  = regexp.MustCompile(`^P[0-7]$`)
)

// Parser turns firmware lines into decoded messages
type Parser struct {
	demod  *demod.Demodulator
	logger zerolog.Logger

	mu      sync.RWMutex
	rfMode  string
	version string

	now func() time.Time
}

// Option configures a Parser
type Option func(*Parser)

// WithRFMode enables MN demodulation for the given rf mode
func WithRFMode(mode string) Option {
	return func(p *Parser) { p.rfMode = mode }
}

// New creates a Parser backed by d
func New(d *demod.Demodulator, logger zerolog.Logger, opts ...Option) *Parser {
	p := &Parser{
		demod:  d,
		logger: logger.With().Str("component", "parser").Logger(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetRFMode changes the rf mode used for MN frames; empty disables MN decoding
func (p *Parser) SetRFMode(mode string) {
	p.mu.Lock()
	p.rfMode = mode
	p.mu.Unlock()
}

// RFMode returns the configured rf mode
func (p *Parser) RFMode() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rfMode
}

// SetVersion records the firmware version string
func (p *Parser) SetVersion(v string) {
	p.mu.Lock()
	p.version = v
	p.mu.Unlock()
}

func (p *Parser) firmware() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// ExtractPayload returns the frame between STX and ETX
func ExtractPayload(line string) (string, bool) {
	m := frameRe.FindStringSubmatch(strings.Trim(line, " \t\r\n"))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsFrame reports whether line is an STX/ETX framed message
func IsFrame(line string) bool {
	_, ok := ExtractPayload(line)
	return ok
}

// ParseLine decodes one line. An empty result means the line was not a
// frame or no protocol accepted it.
func (p *Parser) ParseLine(line string) []DecodedMessage {
	payload, ok := ExtractPayload(line)
	if !ok {
		return nil
	}

	tag := payload[:2]
	if IsCompressed(payload) {
		payload = Decompress(payload)
	}
	fields := splitFields(payload)

	var msgs []DecodedMessage
	switch strings.ToUpper(tag) {
	case "MS":
		msgs = p.parseSynced(payload, fields)
	case "MU":
		msgs = p.parseUnsynced(payload, fields)
	case "MC":
		msgs = p.parseManchester(tag, fields)
	case "MN":
		msgs = p.parseNoise(payload, fields)
	default:
		p.logger.Debug().Str("tag", tag).Msg("ignoring frame type")
		return nil
	}
	if len(msgs) == 0 {
		p.logger.Debug().Err(&sderr.ClassificationFailure{Line: payload}).Msg("no protocol matched")
		return nil
	}

	for i := range msgs {
		msgs[i].Raw = payload
		msgs[i].MessageType = strings.ToUpper(tag)
	}
	return msgs
}

type field struct {
	key   string
	value string
}

type fieldSet struct {
	list []field
	m    map[string]string
}

func (f fieldSet) get(key string) (string, bool) {
	v, ok := f.m[key]
	return v, ok
}

// splitFields splits K=V parts; the leading tag is skipped. A repeated key
// keeps its first value.
func splitFields(payload string) fieldSet {
	fs := fieldSet{m: make(map[string]string)}
	for i, part := range strings.Split(payload, ";") {
		if i == 0 || part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		if _, dup := fs.m[k]; dup {
			continue
		}
		fs.m[k] = v
		fs.list = append(fs.list, field{k, v})
	}
	return fs
}

func (f fieldSet) pulses() []pattern.Pulse {
	var out []pattern.Pulse
	for _, fl := range f.list {
		if !pulseRe.MatchString(fl.key) {
			continue
		}
		v, err := strconv.Atoi(fl.value)
		if err != nil {
			continue
		}
		out = append(out, pattern.Pulse{ID: fl.key[1:], Value: float64(v)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// rssi converts R= when present. ok is false when R is present but not numeric.
func (f fieldSet) rssi() (*float64, bool) {
	raw, present := f.get("R")
	if !present {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	v := CalcRSSI(n)
	return &v, true
}

func (f fieldSet) afc() *float64 {
	raw, ok := f.get("F")
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	v := CalcAFC(n)
	return &v
}

func (p *Parser) parseSynced(payload string, f fieldSet) []DecodedMessage {
	data, _ := f.get("D")
	cp, _ := f.get("CP")
	sp, _ := f.get("SP")
	for name, v := range map[string]string{"D": data, "CP": cp, "SP": sp} {
		if !digitsRe.MatchString(v) {
			p.logger.Debug().Str("field", name).Str("line", payload).Msg("MS frame with invalid field")
			return nil
		}
	}
	rssi, ok := f.rssi()
	if !ok {
		p.logger.Debug().Str("line", payload).Msg("MS frame with invalid RSSI")
		return nil
	}

	results := p.demod.Synced(demod.PulseFrame{Pulses: f.pulses(), Data: data, ClockID: cp})
	return p.convert(results, rssi, nil)
}

func (p *Parser) parseUnsynced(payload string, f fieldSet) []DecodedMessage {
	data, ok := f.get("D")
	if !ok || !digitsRe.MatchString(data) || !muRe.MatchString(payload) {
		p.logger.Debug().Str("line", payload).Msg("MU frame failed validation")
		return nil
	}
	rssi, _ := f.rssi()
	cp, _ := f.get("CP")

	results := p.demod.Unsynced(demod.PulseFrame{Pulses: f.pulses(), Data: data, ClockID: cp})
	return p.convert(results, rssi, nil)
}

func (p *Parser) parseManchester(tag string, f fieldSet) []DecodedMessage {
	data, hasD := f.get("D")
	clock, hasC := f.get("C")
	length, hasL := f.get("L")
	if !hasD || !hasC || !hasL {
		p.logger.Debug().Msg("MC frame missing D, C or L")
		return nil
	}
	if !codec.IsHex(data) {
		p.logger.Warn().Str("data", data).Msg("MC frame with non-hexadecimal data")
		return nil
	}
	c, err1 := strconv.Atoi(clock)
	l, err2 := strconv.Atoi(length)
	if err1 != nil || err2 != nil {
		p.logger.Debug().Str("clock", clock).Str("length", length).Msg("MC frame with invalid clock or length")
		return nil
	}
	rssi, ok := f.rssi()
	if !ok {
		p.logger.Warn().Msg("could not parse MC RSSI value")
	}

	typ := "MC"
	if tag == "Mc" {
		typ = "Mc"
	}
	results := p.demod.Manchester(demod.ManchesterFrame{Hex: data, Clock: c, Length: l, Type: typ, Version: p.firmware()})
	return p.convert(results, rssi, f.afc())
}

func (p *Parser) parseNoise(payload string, f fieldSet) []DecodedMessage {
	mode := p.RFMode()
	if mode == "" {
		p.logger.Info().Str("line", payload).Msg("received firmware message")
		return nil
	}
	data, ok := f.get("D")
	if !ok {
		p.logger.Debug().Str("line", payload).Msg("MN frame without data")
		return nil
	}

	frame := demod.NoiseFrame{Hex: data, RFMode: mode}
	var afc *float64
	if raw, ok := f.get("A"); ok {
		if a, err := strconv.Atoi(raw); err == nil {
			frame.AFC = &a
			v := demod.FreqAFC(a)
			afc = &v
		}
	}
	rssi, _ := f.rssi()
	return p.convert(p.demod.Noise(frame), rssi, afc)
}

func (p *Parser) convert(results []demod.Result, rssi, afc *float64) []DecodedMessage {
	if len(results) == 0 {
		return nil
	}
	now := p.now()
	out := make([]DecodedMessage, 0, len(results))
	for _, r := range results {
		meta := map[string]any{}
		if r.Clock != 0 {
			meta["clock"] = r.Clock
		}
		for k, v := range r.Meta {
			meta[k] = v
		}
		checks := map[string]bool{}
		if r.Check != "" {
			checks[r.Check] = true
		}
		out = append(out, DecodedMessage{
			ProtocolID: r.ProtocolID,
			Payload:    r.Payload,
			BitLength:  r.BitLength,
			RSSI:       rssi,
			AFC:        afc,
			ReceivedAt: now,
			Checks:     checks,
			Metadata:   meta,
		})
	}
	return out
}
