// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package graphite aggregates samples per second and ships them to a Graphite
// carbon listener over the plaintext protocol.
package graphite

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	xglog "github.com/ManuGH/dpmon/internal/log"
	"github.com/ManuGH/dpmon/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrFailedToConnect is returned when the server cannot be reached or a
// send fails after one reconnect.
var ErrFailedToConnect = errors.New("failed to connect to graphite")

// Config holds the carbon endpoint and batching parameters.
type Config struct {
	Host string
	Port int
	// Root prefixes every metric path, e.g. "dataportal.box1".
	Root string
	// AggregationTime is how long a second's bucket stays open. Values below
	// one second would send partial aggregates and are raised to one second.
	AggregationTime time.Duration
	Timeout         time.Duration
	// MaxPending bounds the unsent line queue; the oldest lines are dropped first.
	MaxPending int
	// ReconnectInterval throttles connection attempts.
	ReconnectInterval time.Duration
}

// DefaultConfig matches a carbon daemon on the local host.
func DefaultConfig() Config {
	return Config{
		Host:              "127.0.0.1",
		Port:              2003,
		Root:              "dataportal",
		AggregationTime:   time.Second,
		Timeout:           60 * time.Second,
		MaxPending:        100000,
		ReconnectInterval: 5 * time.Second,
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client is safe for concurrent use.
type Client struct {
	cfg    Config
	schema matcher
	logger zerolog.Logger

	now     func() time.Time
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
	limiter *rate.Limiter

	// mu guards the queues and lastErr and is never held across I/O.
	mu      sync.Mutex
	buckets map[int64]map[string][]float64
	pending []string
	lastErr error

	// sendMu serializes Flush and owns conn.
	sendMu sync.Mutex
	conn   net.Conn
}

// New validates cfg and schema. It does not connect; the first Flush does.
func New(cfg Config, schema Schema) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("graphite: host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("graphite: invalid port %d", cfg.Port)
	}
	m, err := schema.compile()
	if err != nil {
		return nil, fmt.Errorf("graphite: %w", err)
	}
	if cfg.AggregationTime < time.Second {
		cfg.AggregationTime = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultConfig().MaxPending
	}

	// burst 2 lets a failed write reconnect and retry immediately
	limit := rate.Inf
	if cfg.ReconnectInterval > 0 {
		limit = rate.Every(cfg.ReconnectInterval)
	}
	dialer := &net.Dialer{Timeout: cfg.Timeout}

	return &Client{
		cfg:     cfg,
		schema:  m,
		logger:  xglog.WithComponent("graphite").With().Str(xglog.FieldGraphiteAddr, cfg.Addr()).Logger(),
		now:     time.Now,
		dial:    dialer.DialContext,
		limiter: rate.NewLimiter(limit, 2),
		buckets: make(map[int64]map[string][]float64),
	}, nil
}

// Add records one sample under the current second.
func (c *Client) Add(name string, value float64) {
	ts := c.now().Unix()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(ts, name, value)
}

// AddAll records every sample of m under the current second.
func (c *Client) AddAll(m map[string]float64) {
	ts := c.now().Unix()

	c.mu.Lock()
	defer c.mu.Unlock()
	for name, v := range m {
		c.addLocked(ts, name, v)
	}
}

func (c *Client) addLocked(ts int64, name string, value float64) {
	bucket, ok := c.buckets[ts]
	if !ok {
		bucket = make(map[string][]float64)
		c.buckets[ts] = bucket
	}
	bucket[name] = append(bucket[name], value)
}

// Pending returns the number of lines waiting to be sent.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// LastError returns the error of the last send, nil after a success.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Flush aggregates every closed bucket and sends all queued lines in one write.
// Lines that could not be sent stay queued for the next Flush. Add, Pending
// and LastError do not wait for a send in progress.
func (c *Client) Flush(ctx context.Context) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	c.collectLocked(c.now().Unix())
	n := len(c.pending)
	metrics.SetGraphitePending(n)
	payload := strings.Join(c.pending, "")
	c.mu.Unlock()
	if n == 0 {
		return nil
	}

	c.logger.Debug().
		Str(xglog.FieldEvent, "graphite.flush").
		Int(xglog.FieldLines, n).
		Msg("sending metrics")

	err := c.send(ctx, payload, true)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if err != nil {
		metrics.IncGraphiteSendError()
		return err
	}
	// only Flush shrinks pending, so the first n lines are the ones sent
	c.pending = slices.Delete(c.pending, 0, n)
	metrics.AddGraphiteLinesSent(n)
	metrics.SetGraphitePending(len(c.pending))
	return nil
}

// collectLocked turns buckets at least AggregationTime old into lines.
// Buckets are visited oldest first and the scan stops at the first open one.
func (c *Client) collectLocked(now int64) {
	agg := int64(c.cfg.AggregationTime / time.Second)

	for _, ts := range slices.Sorted(maps.Keys(c.buckets)) {
		if ts+agg > now {
			break
		}
		bucket := c.buckets[ts]
		for _, name := range slices.Sorted(maps.Keys(bucket)) {
			value := c.schema.resolve(name)(bucket[name])
			c.pending = append(c.pending, c.formatLine(name, value, ts))
		}
		delete(c.buckets, ts)
	}

	if over := len(c.pending) - c.cfg.MaxPending; over > 0 {
		c.pending = slices.Delete(c.pending, 0, over)
		metrics.AddGraphiteDroppedLines(over)
		c.logger.Warn().
			Str(xglog.FieldEvent, "graphite.pending_dropped").
			Int(xglog.FieldLines, over).
			Int(xglog.FieldPending, len(c.pending)).
			Msg("pending queue full, dropped oldest lines")
	}
}

func (c *Client) formatLine(name string, value float64, ts int64) string {
	path := name
	if c.cfg.Root != "" {
		path = c.cfg.Root + "." + name
	}
	return path + " " + strconv.FormatFloat(value, 'f', -1, 64) + " " + strconv.FormatInt(ts, 10) + "\n"
}

// send, connectLocked and closeLocked require sendMu.
func (c *Client) send(ctx context.Context, payload string, retry bool) error {
	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			return err
		}
	}

	if err := c.conn.SetWriteDeadline(c.now().Add(c.cfg.Timeout)); err == nil {
		_, err = c.conn.Write([]byte(payload))
		if err == nil {
			return nil
		}
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "graphite.write_failed").Msg("write failed")
	}

	c.closeLocked()
	if !retry {
		return fmt.Errorf("%w: write to %s failed", ErrFailedToConnect, c.cfg.Addr())
	}
	if err := c.connectLocked(ctx); err != nil {
		return err
	}
	return c.send(ctx, payload, false)
}

func (c *Client) connectLocked(ctx context.Context) error {
	c.closeLocked()

	if !c.limiter.Allow() {
		metrics.IncGraphiteReconnect("throttled")
		return fmt.Errorf("%w: reconnect to %s throttled", ErrFailedToConnect, c.cfg.Addr())
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	conn, err := c.dial(dialCtx, "tcp", c.cfg.Addr())
	if err != nil {
		metrics.IncGraphiteReconnect("failure")
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "graphite.connect_failed").Msg("connect failed")
		return fmt.Errorf("%w: %s: %v", ErrFailedToConnect, c.cfg.Addr(), err)
	}
	metrics.IncGraphiteReconnect("success")
	c.logger.Info().Str(xglog.FieldEvent, "graphite.connected").Msg("connected to graphite")
	c.conn = conn
	return nil
}

func (c *Client) closeLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close drops the connection. Queued lines and open buckets are kept.
func (c *Client) Close() error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.closeLocked()
	return nil
}
