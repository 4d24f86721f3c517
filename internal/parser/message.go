package parser

import "time"

// DecodedMessage is one payload recovered from a firmware frame
type DecodedMessage struct {
	ProtocolID  string
	Payload     string
	BitLength   int
	RSSI        *float64
	AFC         *float64
	Raw         string
	MessageType string
	ReceivedAt  time.Time

	// Checks lists the integrity checks that ran and passed
	Checks   map[string]bool
	Metadata map[string]any
}

// CalcRSSI converts the firmware's raw RSSI byte to dBm
func CalcRSSI(raw int) float64 {
	if raw >= 128 {
		return float64(raw-256)/2 - 74
	}
	return float64(raw)/2 - 74
}

// CalcAFC converts the firmware's raw frequency offset byte
func CalcAFC(raw int) float64 {
	if raw >= 128 {
		return float64(raw-256) / 2
	}
	return float64(raw) / 2
}
