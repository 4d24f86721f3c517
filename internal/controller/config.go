package controller

import "time"

// Config tunes the controller. Zero fields take the defaults below.
type Config struct {
	InitMaxRetries    int
	InitRetryInterval time.Duration

	KeepaliveInterval  time.Duration
	KeepaliveTimeout   time.Duration
	KeepaliveThreshold int

	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration

	// minimum gap between two writes to the device
	WriteGap time.Duration
	// how long a request may wait in the queue before it is started
	QueueTimeout time.Duration

	QueueSize     int
	MessageBuffer int

	// Frequency in MHz applied after the handshake; 0 leaves the device setting
	Frequency float64
	RFMode    string
}

func DefaultConfig() Config {
	return Config{
		InitMaxRetries:       5,
		InitRetryInterval:    5 * time.Second,
		KeepaliveInterval:    60 * time.Second,
		KeepaliveTimeout:     2 * time.Second,
		KeepaliveThreshold:   3,
		ReconnectInterval:    5 * time.Second,
		MaxReconnectInterval: 60 * time.Second,
		WriteGap:             50 * time.Millisecond,
		QueueTimeout:         30 * time.Second,
		QueueSize:            32,
		MessageBuffer:        256,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitMaxRetries <= 0 {
		c.InitMaxRetries = d.InitMaxRetries
	}
	if c.InitRetryInterval <= 0 {
		c.InitRetryInterval = d.InitRetryInterval
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = d.KeepaliveInterval
	}
	if c.KeepaliveTimeout <= 0 {
		c.KeepaliveTimeout = d.KeepaliveTimeout
	}
	if c.KeepaliveThreshold <= 0 {
		c.KeepaliveThreshold = d.KeepaliveThreshold
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = d.ReconnectInterval
	}
	if c.MaxReconnectInterval < c.ReconnectInterval {
		c.MaxReconnectInterval = max(d.MaxReconnectInterval, c.ReconnectInterval)
	}
	if c.WriteGap <= 0 {
		c.WriteGap = d.WriteGap
	}
	if c.QueueTimeout <= 0 {
		c.QueueTimeout = d.QueueTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.MessageBuffer <= 0 {
		c.MessageBuffer = d.MessageBuffer
	}
	return c
}

func nextBackoff(cur, limit time.Duration) time.Duration {
	next := cur * 2
	if next > limit {
		return limit
	}
	return next
}
