package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dbehnke/signalduino/internal/commands"
	"github.com/dbehnke/signalduino/internal/sderr"
)

// initialize performs the device handshake: version query with retries,
// then frequency, rf mode and receiver enable
func (c *Controller) initialize(ctx context.Context) error {
	var version string
	for attempt := 1; ; attempt++ {
		c.logger.Info().Int("attempt", attempt).Int("max", c.cfg.InitMaxRetries).Msg("initializing device")

		res, err := c.send(ctx, commands.Version())
		if err == nil {
			version = res.Response
			break
		}
		if !sderr.IsTimeout(err) {
			return fmt.Errorf("failed to query firmware version: %w", err)
		}
		if attempt >= c.cfg.InitMaxRetries {
			return fmt.Errorf("failed to initialize after %d attempts: %w", attempt, err)
		}
		c.logger.Warn().Err(err).Int("attempt", attempt).Msg("device did not answer version query")
		if !c.sleep(ctx, c.cfg.InitRetryInterval) {
			return ctx.Err()
		}
	}

	c.mu.Lock()
	c.session.Version = version
	c.mu.Unlock()
	c.parser.SetVersion(version)
	c.logger.Info().Str("version", version).Msg("device identified")

	if c.cfg.Frequency > 0 {
		reqs, err := commands.Frequency(c.cfg.Frequency)
		if err != nil {
			return fmt.Errorf("failed to build frequency commands: %w", err)
		}
		for _, r := range reqs {
			if _, err := c.send(ctx, r); err != nil {
				return fmt.Errorf("failed to set frequency: %w", err)
			}
		}
	}
	if c.cfg.RFMode != "" {
		c.parser.SetRFMode(c.cfg.RFMode)
	}

	if _, err := c.send(ctx, commands.EnableReceiver()); err != nil {
		return fmt.Errorf("failed to enable receiver: %w", err)
	}
	return nil
}

// keepalive probes the device until ctx ends or the miss threshold is hit
func (c *Controller) keepalive(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.KeepaliveInterval)
	defer ticker.Stop()

	probe := commands.Ping()
	probe.Timeout = c.cfg.KeepaliveTimeout

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		res, err := c.send(ctx, probe)
		if ctx.Err() != nil {
			return
		}
		if err == nil && strings.Contains(res.Response, "OK") {
			c.mu.Lock()
			c.session.LastKeepalive = time.Now()
			c.session.MissedKeepalives = 0
			c.mu.Unlock()
			continue
		}

		c.mu.Lock()
		c.session.MissedKeepalives++
		missed := c.session.MissedKeepalives
		c.mu.Unlock()
		c.logger.Warn().Err(err).Int("missed", missed).Int("threshold", c.cfg.KeepaliveThreshold).Msg("keepalive missed")

		if missed >= c.cfg.KeepaliveThreshold {
			c.reportLinkError(errors.Join(ErrKeepaliveExhausted, err))
			return
		}
	}
}
