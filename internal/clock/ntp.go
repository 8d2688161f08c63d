package clock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/beevik/ntp"

	"github.com/oshokin/deadman-vault/internal/logger"
)

const (
	// DefaultNTPInterval is how often the offset is refreshed.
	DefaultNTPInterval = 10 * time.Minute
	// DefaultMaxOffset is the largest offset accepted without a warning.
	DefaultMaxOffset = 2 * time.Second
)

// ErrNTPServerRequired is returned when no NTP server is configured.
var ErrNTPServerRequired = errors.New("ntp server must be provided")

// QueryFunc returns the offset between the local clock and the reference clock.
type QueryFunc func(server string) (time.Duration, error)

// NTP is a Clock corrected by the offset reported by an NTP server.
type NTP struct {
	// server is the NTP host to query.
	server string
	// interval is the refresh period of the offset.
	interval time.Duration
	// maxOffset is the offset above which a warning is logged.
	maxOffset time.Duration
	// query performs the NTP request.
	query QueryFunc
	// local is the underlying clock the offset is applied to.
	local Clock

	// mu protects offset, synced and last.
	mu     sync.RWMutex
	offset time.Duration
	synced bool
	// last is the latest value returned by Now.
	last time.Time
}

// NTPOption configures the NTP clock.
type NTPOption func(*NTP)

// WithInterval sets the offset refresh period.
func WithInterval(interval time.Duration) NTPOption {
	return func(c *NTP) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithMaxOffset sets the offset warning threshold.
func WithMaxOffset(maxOffset time.Duration) NTPOption {
	return func(c *NTP) {
		if maxOffset > 0 {
			c.maxOffset = maxOffset
		}
	}
}

// WithQuery replaces the NTP query, mainly for tests.
func WithQuery(query QueryFunc) NTPOption {
	return func(c *NTP) {
		if query != nil {
			c.query = query
		}
	}
}

// WithLocal replaces the local clock the offset is applied to.
func WithLocal(local Clock) NTPOption {
	return func(c *NTP) {
		if local != nil {
			c.local = local
		}
	}
}

// NewNTP creates an NTP-corrected clock. Call Sync or Run before relying on it.
func NewNTP(server string, opts ...NTPOption) (*NTP, error) {
	if server == "" {
		return nil, ErrNTPServerRequired
	}

	c := &NTP{
		server:    server,
		interval:  DefaultNTPInterval,
		maxOffset: DefaultMaxOffset,
		query:     queryOffset,
		local:     System{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Now returns the local time corrected by the last known offset.
// It never returns a value earlier than a previous one, even when a resync lowers the offset.
func (c *NTP) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.local.Now().Add(c.offset)
	if now.Before(c.last) {
		return c.last
	}

	c.last = now

	return now
}

// Offset returns the last known offset and whether a sync has succeeded.
func (c *NTP) Offset() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.offset, c.synced
}

// Sync queries the NTP server once and stores the offset.
// On failure the previous offset is kept.
func (c *NTP) Sync(ctx context.Context) error {
	offset, err := c.query(c.server)
	if err != nil {
		return fmt.Errorf("query ntp server %s: %w", c.server, err)
	}

	if offset.Abs() > c.maxOffset {
		logger.WarnKV(ctx, "Local clock drifts from NTP reference", "server", c.server, "offset", offset.String())
	}

	c.mu.Lock()
	c.offset = offset
	c.synced = true
	c.mu.Unlock()

	return nil
}

// Run refreshes the offset until the context is canceled.
func (c *NTP) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil {
				logger.ErrorKV(ctx, "NTP sync failed", "error", err)
			}
		}
	}
}

// queryOffset asks an NTP server for the local clock offset.
func queryOffset(server string) (time.Duration, error) {
	resp, err := ntp.Query(server)
	if err != nil {
		return 0, err
	}

	if err = resp.Validate(); err != nil {
		return 0, fmt.Errorf("invalid ntp response: %w", err)
	}

	return resp.ClockOffset, nil
}
