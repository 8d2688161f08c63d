package clock

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
)

var errUnreachable = errors.New("unreachable")

// TestManual_AdvanceAndSet checks the deterministic clock.
func TestManual_AdvanceAndSet(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := NewManual(start)

	require.Equal(t, start, c.Now())

	c.Advance(time.Hour)
	require.Equal(t, start.Add(time.Hour), c.Now())

	c.Set(start)
	require.Equal(t, start, c.Now())
}

// TestNewNTP_RequiresServer rejects an empty server.
func TestNewNTP_RequiresServer(t *testing.T) {
	t.Parallel()

	c, err := NewNTP("")
	require.ErrorIs(t, err, ErrNTPServerRequired)
	require.Nil(t, c)
}

// TestNTP_SyncAppliesOffset verifies the offset is applied and kept on failure.
func TestNTP_SyncAppliesOffset(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	local := NewManual(start)

	var (
		offset = 3 * time.Second
		fail   bool
	)

	c, err := NewNTP("pool.ntp.org",
		WithLocal(local),
		WithMaxOffset(time.Second),
		WithQuery(func(string) (time.Duration, error) {
			if fail {
				return 0, errUnreachable
			}

			return offset, nil
		}),
	)
	require.NoError(t, err)

	_, synced := c.Offset()
	require.False(t, synced)
	require.Equal(t, start, c.Now())

	require.NoError(t, c.Sync(context.Background()))
	require.Equal(t, start.Add(offset), c.Now())

	fail = true
	require.ErrorIs(t, c.Sync(context.Background()), errUnreachable)

	got, synced := c.Offset()
	require.True(t, synced)
	require.Equal(t, offset, got)
}

// TestNTP_NowNeverStepsBack holds the time when a resync lowers the offset.
func TestNTP_NowNeverStepsBack(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	local := NewManual(start)
	offset := 3 * time.Second

	c, err := NewNTP("pool.ntp.org",
		WithLocal(local),
		WithQuery(func(string) (time.Duration, error) {
			return offset, nil
		}),
	)
	require.NoError(t, err)

	require.NoError(t, c.Sync(context.Background()))
	require.Equal(t, start.Add(3*time.Second), c.Now())

	offset = time.Second
	require.NoError(t, c.Sync(context.Background()))
	require.Equal(t, start.Add(3*time.Second), c.Now())

	local.Advance(time.Second)
	require.Equal(t, start.Add(3*time.Second), c.Now())

	local.Advance(4 * time.Second)
	require.Equal(t, start.Add(6*time.Second), c.Now())
}

// TestNTP_RunRefreshesOnInterval drives the refresh loop with a fake time bubble.
func TestNTP_RunRefreshesOnInterval(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		calls := 0

		c, err := NewNTP("pool.ntp.org",
			WithInterval(time.Minute),
			WithQuery(func(string) (time.Duration, error) {
				calls++

				return time.Duration(calls) * time.Millisecond, nil
			}),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		go func() {
			c.Run(ctx)
			close(done)
		}()

		time.Sleep(3*time.Minute + time.Second)
		synctest.Wait()

		offset, synced := c.Offset()
		require.True(t, synced)
		require.Equal(t, 3*time.Millisecond, offset)

		cancel()
		<-done
	})
}
