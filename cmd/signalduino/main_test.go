package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbehnke/signalduino/internal/parser"
)

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		addr     string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"sduino", "sduino", 0, false},
		{"sduino:2323", "sduino", 2323, false},
		{"[fe80::1]:23", "fe80::1", 23, false},
		{"sduino:telnet", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			host, port, err := splitHostPort(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signalduino.toml")
	require.NoError(t, os.WriteFile(path, []byte("[device]\nserial_port = \"/dev/ttyUSB0\"\n"), 0o644))

	cfg, err := loadConfig(path, "", "sduino:2323", "debug")
	require.NoError(t, err)
	assert.True(t, cfg.UsesTCP())
	assert.Empty(t, cfg.GetSerialPort())
	assert.Equal(t, "sduino", cfg.GetTCPHost())
	assert.Equal(t, 2323, cfg.GetTCPPort())
	assert.Equal(t, "debug", cfg.GetLogLevel())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.toml")

	cfg, err := loadConfig(missing, "/dev/ttyACM0", "", "")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.GetSerialPort())

	_, err = loadConfig(missing, "", "", "")
	assert.Error(t, err, "no transport configured")
}

func TestDriver_JournalsMessages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signalduino.toml")
	data := "[device]\ntcp_host = \"127.0.0.1\"\n[database]\nenabled = true\njournal = true\npath = \"" +
		filepath.ToSlash(filepath.Join(dir, "state.db")) + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := loadConfig(path, "", "", "")
	require.NoError(t, err)

	d, err := NewDriver(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer d.Close()
	assert.Regexp(t, `^signalduino-[0-9a-f]{32}$`, d.clientID)

	rssi := -70.5
	d.handleMessage(parser.DecodedMessage{ProtocolID: "3.1", Payload: "i000001", BitLength: 24, RSSI: &rssi})
	d.handleMessage(parser.DecodedMessage{ProtocolID: "57", Payload: "u57#D55B58", BitLength: 24})

	assert.EqualValues(t, 2, d.received.Load())
	n, err := d.messages.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
