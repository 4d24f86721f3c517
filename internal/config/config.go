package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// Config represents the SIGNALduino driver configuration
type Config struct {
	filename string

	// Device section
	serialPort string
	baudRate   int
	tcpHost    string
	tcpPort    int
	frequency  float64
	rfMode     string

	// Controller section
	initMaxRetries       int
	initRetryInterval    time.Duration
	keepaliveInterval    time.Duration
	keepaliveTimeout     time.Duration
	keepaliveThreshold   int
	reconnectInterval    time.Duration
	maxReconnectInterval time.Duration
	writeGap             time.Duration
	queueTimeout         time.Duration

	// Decoder section
	maxMuRepeat int

	// Log section
	logLevel       string
	statusInterval time.Duration

	// Database section
	databaseEnabled bool
	databasePath    string
	journal         bool
	retention       time.Duration
	databaseDebug   bool
}

type fileConfig struct {
	Device struct {
		SerialPort string  `toml:"serial_port"`
		BaudRate   int     `toml:"baud_rate"`
		TCPHost    string  `toml:"tcp_host"`
		TCPPort    int     `toml:"tcp_port"`
		Frequency  float64 `toml:"frequency"`
		RFMode     string  `toml:"rf_mode"`
	} `toml:"device"`

	Controller struct {
		InitMaxRetries       int    `toml:"init_max_retries"`
		InitRetryInterval    string `toml:"init_retry_interval"`
		KeepaliveInterval    string `toml:"keepalive_interval"`
		KeepaliveTimeout     string `toml:"keepalive_timeout"`
		KeepaliveThreshold   int    `toml:"keepalive_threshold"`
		ReconnectInterval    string `toml:"reconnect_interval"`
		MaxReconnectInterval string `toml:"max_reconnect_interval"`
		WriteGap             string `toml:"write_gap"`
		QueueTimeout         string `toml:"queue_timeout"`
	} `toml:"controller"`

	Decoder struct {
		MaxMuRepeat int `toml:"max_mu_repeat"`
	} `toml:"decoder"`

	Log struct {
		Level          string `toml:"level"`
		StatusInterval string `toml:"status_interval"`
	} `toml:"log"`

	Database struct {
		Enabled   bool   `toml:"enabled"`
		Path      string `toml:"path"`
		Journal   bool   `toml:"journal"`
		Retention string `toml:"retention"`
		Debug     bool   `toml:"debug"`
	} `toml:"database"`
}

// NewConfig creates a new configuration instance with defaults
func NewConfig(filename string) *Config {
	return &Config{
		filename: filename,

		baudRate: 57600,
		tcpPort:  23,

		initMaxRetries:       5,
		initRetryInterval:    5 * time.Second,
		keepaliveInterval:    60 * time.Second,
		keepaliveTimeout:     2 * time.Second,
		keepaliveThreshold:   3,
		reconnectInterval:    5 * time.Second,
		maxReconnectInterval: 60 * time.Second,
		writeGap:             50 * time.Millisecond,
		queueTimeout:         30 * time.Second,

		maxMuRepeat: 4,

		logLevel:       "info",
		statusInterval: 5 * time.Minute,

		databasePath: "data/signalduino.db",
	}
}

// Load loads configuration from the specified file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.filename)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %v", c.filename, err)
	}
	return c.LoadFromString(string(data))
}

// LoadFromString loads configuration from a string (useful for testing)
func (c *Config) LoadFromString(data string) error {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	d := raw.Device
	if meta.IsDefined("device", "serial_port") {
		c.serialPort = strings.TrimSpace(d.SerialPort)
	}
	if meta.IsDefined("device", "baud_rate") {
		c.baudRate = d.BaudRate
	}
	if meta.IsDefined("device", "tcp_host") {
		c.tcpHost = strings.TrimSpace(d.TCPHost)
	}
	if meta.IsDefined("device", "tcp_port") {
		c.tcpPort = d.TCPPort
	}
	if meta.IsDefined("device", "frequency") {
		c.frequency = d.Frequency
	}
	if meta.IsDefined("device", "rf_mode") {
		c.rfMode = strings.TrimSpace(d.RFMode)
	}

	ctl := raw.Controller
	if meta.IsDefined("controller", "init_max_retries") {
		c.initMaxRetries = ctl.InitMaxRetries
	}
	if meta.IsDefined("controller", "keepalive_threshold") {
		c.keepaliveThreshold = ctl.KeepaliveThreshold
	}
	durations := []struct {
		key    string
		value  string
		target *time.Duration
	}{
		{"init_retry_interval", ctl.InitRetryInterval, &c.initRetryInterval},
		{"keepalive_interval", ctl.KeepaliveInterval, &c.keepaliveInterval},
		{"keepalive_timeout", ctl.KeepaliveTimeout, &c.keepaliveTimeout},
		{"reconnect_interval", ctl.ReconnectInterval, &c.reconnectInterval},
		{"max_reconnect_interval", ctl.MaxReconnectInterval, &c.maxReconnectInterval},
		{"write_gap", ctl.WriteGap, &c.writeGap},
		{"queue_timeout", ctl.QueueTimeout, &c.queueTimeout},
	}
	for _, dur := range durations {
		if !meta.IsDefined("controller", dur.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(dur.value))
		if err != nil {
			return fmt.Errorf("invalid controller.%s: %w", dur.key, err)
		}
		*dur.target = v
	}

	if meta.IsDefined("decoder", "max_mu_repeat") {
		c.maxMuRepeat = raw.Decoder.MaxMuRepeat
	}

	if meta.IsDefined("log", "level") {
		c.logLevel = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "status_interval") {
		v, err := time.ParseDuration(strings.TrimSpace(raw.Log.StatusInterval))
		if err != nil {
			return fmt.Errorf("invalid log.status_interval: %w", err)
		}
		c.statusInterval = v
	}

	db := raw.Database
	if meta.IsDefined("database", "enabled") {
		c.databaseEnabled = db.Enabled
	}
	if meta.IsDefined("database", "path") {
		c.databasePath = strings.TrimSpace(db.Path)
	}
	if meta.IsDefined("database", "journal") {
		c.journal = db.Journal
	}
	if meta.IsDefined("database", "retention") {
		v, err := time.ParseDuration(strings.TrimSpace(db.Retention))
		if err != nil {
			return fmt.Errorf("invalid database.retention: %w", err)
		}
		c.retention = v
	}
	if meta.IsDefined("database", "debug") {
		c.databaseDebug = db.Debug
	}
	return nil
}

// ApplyEnv overlays the SIGNALDUINO_* and LOG_LEVEL environment variables
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SIGNALDUINO_SERIAL_PORT"); ok && v != "" {
		c.serialPort = v
	}
	if v, ok := lookup("SIGNALDUINO_BAUD"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SIGNALDUINO_BAUD %q: %v", v, err)
		}
		c.baudRate = n
	}
	if v, ok := lookup("SIGNALDUINO_TCP_HOST"); ok && v != "" {
		c.tcpHost = v
	}
	if v, ok := lookup("SIGNALDUINO_TCP_PORT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SIGNALDUINO_TCP_PORT %q: %v", v, err)
		}
		c.tcpPort = n
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.logLevel = v
	}
	return nil
}

// SetSerialPort and SetTCPHost let command line flags override the file
func (c *Config) SetSerialPort(port string) { c.serialPort = port }
func (c *Config) SetTCPHost(host string)    { c.tcpHost = host }
func (c *Config) SetTCPPort(port int)       { c.tcpPort = port }
func (c *Config) SetLogLevel(level string)  { c.logLevel = level }

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	var errs []error
	switch {
	case c.serialPort == "" && c.tcpHost == "":
		errs = append(errs, errors.New("either device.serial_port or device.tcp_host must be set"))
	case c.serialPort != "" && c.tcpHost != "":
		errs = append(errs, errors.New("device.serial_port and device.tcp_host are mutually exclusive"))
	}
	if c.baudRate <= 0 {
		errs = append(errs, fmt.Errorf("invalid baud rate %d", c.baudRate))
	}
	if c.tcpPort <= 0 || c.tcpPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid tcp port %d", c.tcpPort))
	}
	if c.frequency != 0 && (c.frequency < 300 || c.frequency > 928) {
		errs = append(errs, fmt.Errorf("frequency %.2f MHz out of range", c.frequency))
	}
	if c.initMaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("invalid init_max_retries %d", c.initMaxRetries))
	}
	if c.keepaliveThreshold <= 0 {
		errs = append(errs, fmt.Errorf("invalid keepalive_threshold %d", c.keepaliveThreshold))
	}
	if c.maxMuRepeat < 0 {
		errs = append(errs, fmt.Errorf("invalid max_mu_repeat %d", c.maxMuRepeat))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.logLevel)); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.logLevel))
	}
	if c.databaseEnabled && c.databasePath == "" {
		errs = append(errs, errors.New("database.path is required when the database is enabled"))
	}
	if c.retention < 0 {
		errs = append(errs, fmt.Errorf("invalid database.retention %v", c.retention))
	}
	return errors.Join(errs...)
}

// Device section getters
func (c *Config) GetSerialPort() string  { return c.serialPort }
func (c *Config) GetBaudRate() int       { return c.baudRate }
func (c *Config) GetTCPHost() string     { return c.tcpHost }
func (c *Config) GetTCPPort() int        { return c.tcpPort }
func (c *Config) GetFrequency() float64  { return c.frequency }
func (c *Config) GetRFMode() string      { return c.rfMode }
func (c *Config) UsesTCP() bool          { return c.tcpHost != "" }

// Controller section getters
func (c *Config) GetInitMaxRetries() int                  { return c.initMaxRetries }
func (c *Config) GetInitRetryInterval() time.Duration     { return c.initRetryInterval }
func (c *Config) GetKeepaliveInterval() time.Duration     { return c.keepaliveInterval }
func (c *Config) GetKeepaliveTimeout() time.Duration      { return c.keepaliveTimeout }
func (c *Config) GetKeepaliveThreshold() int              { return c.keepaliveThreshold }
func (c *Config) GetReconnectInterval() time.Duration     { return c.reconnectInterval }
func (c *Config) GetMaxReconnectInterval() time.Duration  { return c.maxReconnectInterval }
func (c *Config) GetWriteGap() time.Duration              { return c.writeGap }
func (c *Config) GetQueueTimeout() time.Duration          { return c.queueTimeout }

// Decoder section getters
func (c *Config) GetMaxMuRepeat() int { return c.maxMuRepeat }

// Log section getters
func (c *Config) GetLogLevel() string                { return c.logLevel }
func (c *Config) GetStatusInterval() time.Duration   { return c.statusInterval }

// Database section getters
func (c *Config) GetDatabaseEnabled() bool { return c.databaseEnabled }
func (c *Config) GetDatabasePath() string  { return c.databasePath }
func (c *Config) GetJournal() bool         { return c.journal }

// GetRetention is how long journaled messages are kept; 0 keeps them forever
func (c *Config) GetRetention() time.Duration { return c.retention }
func (c *Config) GetDatabaseDebug() bool   { return c.databaseDebug }
