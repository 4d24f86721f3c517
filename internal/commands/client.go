package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sender executes requests against a device
type Sender interface {
	SendCommand(ctx context.Context, req Request) (Result, error)
}

// Client wraps a Sender with typed firmware queries
type Client struct {
	sender Sender
}

func NewClient(s Sender) *Client {
	return &Client{sender: s}
}

func (c *Client) send(ctx context.Context, req Request) (string, error) {
	res, err := c.sender.SendCommand(ctx, req)
	if err != nil {
		return "", err
	}
	return res.Response, nil
}

func (c *Client) Version(ctx context.Context) (string, error) {
	return c.send(ctx, Version())
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.send(ctx, Ping())
	return err
}

// FreeRAM returns the free firmware memory in bytes
func (c *Client) FreeRAM(ctx context.Context) (uint64, error) {
	line, err := c.send(ctx, FreeRAM())
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse free ram %q: %w", line, err)
	}
	return n, nil
}

// Uptime returns the time since the firmware booted
func (c *Client) Uptime(ctx context.Context) (time.Duration, error) {
	line, err := c.send(ctx, Uptime())
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse uptime %q: %w", line, err)
	}
	return time.Duration(n) * time.Second, nil
}

// Config returns the decoder configuration as reported by CG,
// e.g. MS=1;MU=1;MC=1;Mred=0
func (c *Client) Config(ctx context.Context) (map[string]string, error) {
	line, err := c.send(ctx, GetConfig())
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, part := range strings.Split(line, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && k != "" {
			out[k] = v
		}
	}
	return out, nil
}

func (c *Client) SetDecoder(ctx context.Context, decoder string, enabled bool) error {
	req, err := SetDecoder(decoder, enabled)
	if err != nil {
		return err
	}
	_, err = c.send(ctx, req)
	return err
}

func (c *Client) SetFrequency(ctx context.Context, mhz float64) error {
	reqs, err := Frequency(mhz)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if _, err := c.send(ctx, r); err != nil {
			return fmt.Errorf("failed to set frequency: %w", err)
		}
	}
	return nil
}

func (c *Client) EnableReceiver(ctx context.Context) error {
	_, err := c.send(ctx, EnableReceiver())
	return err
}

func (c *Client) DisableReceiver(ctx context.Context) error {
	_, err := c.send(ctx, DisableReceiver())
	return err
}

// Send transmits a pre-encoded message
func (c *Client) Send(ctx context.Context, message string) error {
	_, err := c.send(ctx, Raw(message))
	return err
}
