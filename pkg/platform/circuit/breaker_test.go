package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestBreakerStartsClosed(t *testing.T) {
	b := New("kafka")
	assert.Equal(t, "kafka", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.True(t, b.Allow())
}

func TestBreakerOpensOnConsecutiveFailures(t *testing.T) {
	b := New("kafka", WithFailureThreshold(2))

	fallback, change := b.RecordFailure()
	assert.False(t, fallback)
	assert.False(t, change.Opened)

	// a success in between restarts the run
	b.RecordSuccess()
	_, change = b.RecordFailure()
	assert.False(t, change.Opened)

	fallback, change = b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())
}

func TestBreakerCooldownAdmitsProbe(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := New("kafka", WithFailureThreshold(1), WithCooldown(10*time.Second), WithClock(clock.Now))

	b.RecordFailure()
	require.True(t, b.IsOpen())
	assert.False(t, b.Allow())

	clock.Advance(10 * time.Second)
	assert.True(t, b.Allow())

	// a failed probe restarts the cooldown
	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.False(t, change.Opened)
	assert.False(t, b.Allow())
}

func TestBreakerClosesAfterSuccessRun(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	primary, change := b.RecordSuccess()
	assert.False(t, primary)
	assert.False(t, change.Closed)
	assert.True(t, b.IsOpen())

	primary, change = b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreakerIgnoresNonPositiveOptions(t *testing.T) {
	b := New("kafka", WithFailureThreshold(0), WithSuccessThreshold(-1), WithCooldown(0))
	for range 4 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen(), "default threshold of five still applies")
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreakerConcurrentUse(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1000))
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				b.RecordFailure()
				b.Allow()
			}
		}()
	}
	wg.Wait()
	assert.False(t, b.IsOpen())
}
