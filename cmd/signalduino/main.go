package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/dbehnke/signalduino/internal/commands"
	"github.com/dbehnke/signalduino/internal/config"
	"github.com/dbehnke/signalduino/internal/controller"
	"github.com/dbehnke/signalduino/internal/database"
	"github.com/dbehnke/signalduino/internal/demod"
	"github.com/dbehnke/signalduino/internal/logging"
	"github.com/dbehnke/signalduino/internal/parser"
	"github.com/dbehnke/signalduino/internal/protocol"
	"github.com/dbehnke/signalduino/internal/transport"
)

const (
	VERSION = "1.0.0-go"
	appName = "signalduino"

	statusQueryTimeout = 10 * time.Second
)

// Driver wires the transport, controller and optional store together
type Driver struct {
	config *config.Config
	logger zerolog.Logger

	ctrl   *controller.Controller
	client *commands.Client

	db       *database.DB
	messages *database.MessageRepository
	clientID string

	received atomic.Uint64
}

// NewDriver builds every component but does not open the device
func NewDriver(cfg *config.Config, logger zerolog.Logger) (*Driver, error) {
	d := &Driver{config: cfg, logger: logger}

	if cfg.GetDatabaseEnabled() {
		db, err := database.NewDB(database.Config{
			Path:  cfg.GetDatabasePath(),
			Debug: cfg.GetDatabaseDebug(),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		id, err := database.NewClientRepository(db.GetDB()).GetOrCreate()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load client id: %w", err)
		}
		d.db = db
		d.clientID = id
		if cfg.GetJournal() {
			d.messages = database.NewMessageRepository(db.GetDB())
		}
	} else {
		d.clientID = database.NewClientID()
	}
	d.logger = d.logger.With().Str("client_id", d.clientID).Logger()

	dm, err := demod.New(protocol.Builtin(), d.logger, demod.WithMaxMuRepeat(cfg.GetMaxMuRepeat()))
	if err != nil {
		d.closeStore()
		return nil, fmt.Errorf("failed to build demodulator: %w", err)
	}
	p := parser.New(dm, d.logger, parser.WithRFMode(cfg.GetRFMode()))

	var t transport.Transport
	if cfg.UsesTCP() {
		t = transport.NewTCP(cfg.GetTCPHost(), cfg.GetTCPPort(), d.logger)
	} else {
		t = transport.NewSerial(cfg.GetSerialPort(), cfg.GetBaudRate(), d.logger)
	}

	d.ctrl = controller.New(t, p, controller.Config{
		InitMaxRetries:       cfg.GetInitMaxRetries(),
		InitRetryInterval:    cfg.GetInitRetryInterval(),
		KeepaliveInterval:    cfg.GetKeepaliveInterval(),
		KeepaliveTimeout:     cfg.GetKeepaliveTimeout(),
		KeepaliveThreshold:   cfg.GetKeepaliveThreshold(),
		ReconnectInterval:    cfg.GetReconnectInterval(),
		MaxReconnectInterval: cfg.GetMaxReconnectInterval(),
		WriteGap:             cfg.GetWriteGap(),
		QueueTimeout:         cfg.GetQueueTimeout(),
		Frequency:            cfg.GetFrequency(),
		RFMode:               cfg.GetRFMode(),
	}, d.logger,
		controller.OnMessage(d.handleMessage),
		controller.OnStateChange(d.handleTransition),
	)
	d.client = commands.NewClient(d.ctrl)
	return d, nil
}

func (d *Driver) handleMessage(msg parser.DecodedMessage) {
	d.received.Add(1)

	ev := d.logger.Info().
		Str("protocol", msg.ProtocolID).
		Str("payload", msg.Payload).
		Int("bits", msg.BitLength).
		Str("type", msg.MessageType)
	if msg.RSSI != nil {
		ev = ev.Float64("rssi", *msg.RSSI)
	}
	if msg.AFC != nil {
		ev = ev.Float64("freq_afc", *msg.AFC)
	}
	ev.Msg("message received")

	if d.messages == nil {
		return
	}
	rec, err := database.NewMessageRecord(msg)
	if err == nil {
		err = d.messages.Insert(rec)
	}
	if err != nil {
		d.logger.Error().Err(err).Str("protocol", msg.ProtocolID).Msg("failed to journal message")
	}
}

func (d *Driver) handleTransition(tr controller.Transition) {
	ev := d.logger.Info()
	if tr.Err != nil {
		ev = d.logger.Warn().Err(tr.Err)
	}
	ev.Stringer("from", tr.From).Stringer("to", tr.To).Msg("connection state changed")
}

// Run starts the controller and blocks until ctx is cancelled
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info().Str("version", VERSION).Msg("SIGNALduino driver starting")

	if err := d.ctrl.Start(ctx); err != nil {
		return fmt.Errorf("failed to open device: %w", err)
	}
	defer d.ctrl.Close()

	var status <-chan time.Time
	if iv := d.config.GetStatusInterval(); iv > 0 {
		ticker := time.NewTicker(iv)
		defer ticker.Stop()
		status = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("shutdown requested")
			return nil
		case <-status:
			d.reportStatus(ctx)
		}
	}
}

// reportStatus logs device health and journal statistics
func (d *Driver) reportStatus(ctx context.Context) {
	sess := d.ctrl.Session()
	ev := d.logger.Info().
		Stringer("state", sess.State).
		Str("firmware", sess.Version).
		Int("reconnects", sess.Reconnects).
		Str("received", humanize.Comma(int64(d.received.Load())))

	if sess.State == controller.Ready {
		qctx, cancel := context.WithTimeout(ctx, statusQueryTimeout)
		if free, err := d.client.FreeRAM(qctx); err == nil {
			ev = ev.Str("free_ram", humanize.IBytes(free))
		} else {
			d.logger.Debug().Err(err).Msg("free ram query failed")
		}
		if up, err := d.client.Uptime(qctx); err == nil {
			ev = ev.Str("uptime", up.String())
		} else {
			d.logger.Debug().Err(err).Msg("uptime query failed")
		}
		cancel()
		if !sess.ConnectedAt.IsZero() {
			ev = ev.Str("connected", humanize.Time(sess.ConnectedAt))
		}
	}

	if d.messages != nil {
		if n, err := d.messages.Count(); err == nil {
			ev = ev.Str("journaled", humanize.Comma(n))
		}
		if keep := d.config.GetRetention(); keep > 0 {
			removed, err := d.messages.DeleteBefore(time.Now().Add(-keep))
			if err != nil {
				d.logger.Error().Err(err).Msg("failed to prune journal")
			} else if removed > 0 {
				ev = ev.Int64("pruned", removed)
			}
		}
	}
	ev.Msg("status")
}

func (d *Driver) closeStore() {
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			d.logger.Error().Err(err).Msg("failed to close database")
		}
	}
}

// Close releases the store; the controller is closed by Run
func (d *Driver) Close() {
	d.closeStore()
}

func main() {
	var (
		configFile = flag.String("config", getDefaultConfig(), "Configuration file path")
		serialPort = flag.String("serial", "", "Serial port of the device (overrides config)")
		tcpAddr    = flag.String("tcp", "", "host[:port] of a network attached device (overrides config)")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
		listPorts  = flag.Bool("list-ports", false, "List available serial ports and exit")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("SIGNALduino driver v%s\n", VERSION)
		return
	}
	if *listPorts {
		ports, err := transport.ListPorts()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list serial ports: %v\n", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if flag.NArg() > 0 {
		*configFile = flag.Arg(0)
	}

	cfg, err := loadConfig(*configFile, *serialPort, *tcpAddr, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	logger := logging.Init(appName, cfg.GetLogLevel())

	driver, err := NewDriver(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create driver")
	}
	defer driver.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := driver.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("driver stopped")
		driver.Close()
		os.Exit(1)
	}
}

// loadConfig reads the file if present, then applies environment and flag
// overrides in that order
func loadConfig(path, serialPort, tcpAddr, level string) (*config.Config, error) {
	cfg := config.NewConfig(path)
	if _, err := os.Stat(path); err == nil {
		if err := cfg.Load(); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if serialPort != "" {
		cfg.SetSerialPort(serialPort)
		cfg.SetTCPHost("")
	}
	if tcpAddr != "" {
		host, port, err := splitHostPort(tcpAddr)
		if err != nil {
			return nil, err
		}
		cfg.SetTCPHost(host)
		if port > 0 {
			cfg.SetTCPPort(port)
		}
		cfg.SetSerialPort("")
	}
	if level != "" {
		cfg.SetLogLevel(level)
	}
	return cfg, cfg.Validate()
}

// splitHostPort accepts "host" or "host:port"
func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// no port given
		return addr, 0, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid tcp port in %q", addr)
	}
	return host, port, nil
}

// getDefaultConfig returns the default configuration file path
func getDefaultConfig() string {
	if _, err := os.Stat("signalduino.toml"); err == nil {
		return "signalduino.toml"
	}

	systemConfig := "/etc/signalduino.toml"
	if _, err := os.Stat(systemConfig); err == nil {
		return systemConfig
	}

	return "signalduino.toml"
}
