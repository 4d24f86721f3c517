// Package commands builds the firmware command lines understood by the
// SIGNALduino together with their response expectations.
package commands

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/dbehnke/signalduino/internal/sderr"
)

const (
	DefaultTimeout      = 2 * time.Second
	FactoryResetTimeout = 5 * time.Second

	// cc1101 reference crystal in MHz
	crystalMHz = 26.0
)

var (
	versionRe = regexp.MustCompile(`(?i)V\s.*SIGNAL(?:duino|ESP|STM).*`)
	numberRe  = regexp.MustCompile(`^\d+$`)
	okRe      = regexp.MustCompile(`OK`)
	configRe  = regexp.MustCompile(`^MS=.*`)
	eepromRe  = regexp.MustCompile(`(?i)EEPROM.*`)
)

// Request is one command queued for the device. Match selects the response
// line; a nil Match accepts any line that is not a radio frame. NoResponse
// requests complete once written.
type Request struct {
	Command    string
	Match      func(line string) bool
	Timeout    time.Duration
	Retries    int
	NoResponse bool
}

// Result is the outcome of a completed request
type Result struct {
	Command  string
	Response string
	Attempts int
}

// Accepts reports whether line answers r
func (r Request) Accepts(line string) bool {
	if r.Match == nil {
		return true
	}
	return r.Match(line)
}

// Regexp builds a matcher from re
func Regexp(re *regexp.Regexp) func(string) bool {
	return re.MatchString
}

func expect(cmd string, re *regexp.Regexp, timeout time.Duration) Request {
	r := Request{Command: cmd, Timeout: timeout}
	if re != nil {
		r.Match = Regexp(re)
	}
	return r
}

func fireAndForget(cmd string) Request {
	return Request{Command: cmd, NoResponse: true}
}

func Version() Request      { return expect("V", versionRe, DefaultTimeout) }
func Help() Request         { return expect("?", nil, DefaultTimeout) }
func FreeRAM() Request      { return expect("R", numberRe, DefaultTimeout) }
func Uptime() Request       { return expect("t", numberRe, DefaultTimeout) }
func Ping() Request         { return expect("P", okRe, DefaultTimeout) }
func CC1101Status() Request { return expect("s", nil, DefaultTimeout) }
func GetConfig() Request    { return expect("CG", configRe, DefaultTimeout) }
func InitWMBus() Request    { return expect("WS34", nil, DefaultTimeout) }

func DisableReceiver() Request { return fireAndForget("XQ") }
func EnableReceiver() Request  { return fireAndForget("XE") }

// FactoryReset resets the CC1101 and reloads the EEPROM defaults
func FactoryReset() Request { return expect("e", nil, FactoryResetTimeout) }

var decoderFlags = map[string]string{
	"MS":      "S",
	"MU":      "U",
	"MC":      "C",
	"Mred":    "R",
	"AFC":     "A",
	"WMBus":   "W",
	"WMBus_T": "T",
}

// SetDecoder enables or disables one of the firmware decoders
// (MS, MU, MC, Mred, AFC, WMBus, WMBus_T)
func SetDecoder(decoder string, enabled bool) (Request, error) {
	flag, ok := decoderFlags[decoder]
	if !ok {
		return Request{}, &sderr.InvalidInputError{Op: "SetDecoder", Input: decoder, Reason: "unknown decoder"}
	}
	return fireAndForget("C" + flag + onOff(enabled)), nil
}

// SetMessageType toggles reception of a two letter message type such as MS
// or MN. The firmware takes the second letter.
func SetMessageType(messageType string, enabled bool) (Request, error) {
	if len(messageType) != 2 {
		return Request{}, &sderr.InvalidInputError{Op: "SetMessageType", Input: messageType, Reason: "must be a two character type"}
	}
	return fireAndForget("C" + onOff(enabled) + strings.ToUpper(messageType[1:])), nil
}

func onOff(enabled bool) string {
	if enabled {
		return "E"
	}
	return "D"
}

func ManchesterMinBitLength(n int) Request {
	return expect(fmt.Sprintf("CSmcmbl=%d", n), nil, DefaultTimeout)
}

func checkByte(op string, v int) error {
	if v < 0 || v > 0xFF {
		return &sderr.RangeError{Op: op, Value: v, Min: 0, Max: 0xFF}
	}
	return nil
}

func ReadRegister(reg int) (Request, error) {
	if err := checkByte("ReadRegister", reg); err != nil {
		return Request{}, err
	}
	return expect(fmt.Sprintf("C%02X", reg), nil, DefaultTimeout), nil
}

func WriteRegister(reg, value int) (Request, error) {
	if err := checkByte("WriteRegister", reg); err != nil {
		return Request{}, err
	}
	if err := checkByte("WriteRegister", value); err != nil {
		return Request{}, err
	}
	return expect(fmt.Sprintf("W%02X%02X", reg, value), nil, DefaultTimeout), nil
}

func ReadEEPROM(addr int) (Request, error) {
	if err := checkByte("ReadEEPROM", addr); err != nil {
		return Request{}, err
	}
	return expect(fmt.Sprintf("r%02X", addr), eepromRe, DefaultTimeout), nil
}

func ReadEEPROMBlock(addr int) (Request, error) {
	if err := checkByte("ReadEEPROMBlock", addr); err != nil {
		return Request{}, err
	}
	return expect(fmt.Sprintf("r%02Xn", addr), eepromRe, DefaultTimeout), nil
}

// PATable writes the PA table; value is already formatted hex such as C0
func PATable(value string) (Request, error) {
	if value == "" || strings.Trim(strings.ToUpper(value), "0123456789ABCDEF") != "" {
		return Request{}, &sderr.InvalidInputError{Op: "PATable", Input: value, Reason: "not hexadecimal"}
	}
	return expect("x"+value, nil, DefaultTimeout), nil
}

func Bandwidth(v int) Request { return expect(fmt.Sprintf("C10%d", v), nil, DefaultTimeout) }
func Rampl(v int) Request     { return expect(fmt.Sprintf("W1D%d", v), nil, DefaultTimeout) }
func Sens(v int) Request      { return expect(fmt.Sprintf("W1F%d", v), nil, DefaultTimeout) }

// Send commands take everything after the two letter prefix
func SendCombined(params string) Request   { return fireAndForget("SC" + params) }
func SendManchester(params string) Request { return fireAndForget("SM" + params) }
func SendRaw(params string) Request        { return fireAndForget("SR" + params) }
func SendXFSK(params string) Request       { return fireAndForget("SN" + params) }

// Raw sends a pre-encoded message without any prefix
func Raw(message string) Request { return fireAndForget(message) }

// FrequencyRegisters returns the CC1101 FREQ2, FREQ1 and FREQ0 values for mhz
func FrequencyRegisters(mhz float64) (f2, f1, f0 int) {
	f := int(math.Floor(mhz / crystalMHz * 65536))
	return f / 65536, (f % 65536) / 256, f % 256
}

// Frequency tunes the receiver. The registers are written through the
// EEPROM mapped addresses 0x0F..0x11, then the radio is cycled through idle
// back into receive.
func Frequency(mhz float64) ([]Request, error) {
	if mhz < 300 || mhz > 928 {
		return nil, &sderr.RangeError{Op: "Frequency", Value: int(mhz), Min: 300, Max: 928}
	}
	f2, f1, f0 := FrequencyRegisters(mhz)
	return []Request{
		fireAndForget(fmt.Sprintf("W0F%02X", f2)),
		fireAndForget(fmt.Sprintf("W10%02X", f1)),
		fireAndForget(fmt.Sprintf("W11%02X", f0)),
		fireAndForget("WS36"),
		fireAndForget("WS34"),
	}, nil
}
