package app

import (
	"sync"
	"time"
)

// TickSource delivers periodic ticks until the returned stop function is called.
// Stop must be safe to call more than once and must not block on an in-progress tick.
type TickSource interface {
	Start(interval time.Duration, tick func()) (stop func())
}

// RealTicks drives ticks from a time.Ticker on its own goroutine.
type RealTicks struct{}

func (RealTicks) Start(interval time.Duration, tick func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tick()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

// ManualTicks is a TickSource advanced programmatically, for deterministic tests and tools.
type ManualTicks struct {
	mu     sync.Mutex
	nextID int
	active map[int]func()
}

func NewManualTicks() *ManualTicks {
	return &ManualTicks{active: make(map[int]func())}
}

func (m *ManualTicks) Start(_ time.Duration, tick func()) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.active[id] = tick
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.active, id)
		m.mu.Unlock()
	}
}

// Advance delivers n ticks to every clock that is still subscribed.
func (m *ManualTicks) Advance(n int) {
	for i := 0; i < n; i++ {
		m.mu.Lock()
		ticks := make([]func(), 0, len(m.active))
		for _, tick := range m.active {
			ticks = append(ticks, tick)
		}
		m.mu.Unlock()
		for _, tick := range ticks {
			tick()
		}
	}
}

// Active reports how many clocks are currently ticking.
func (m *ManualTicks) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Clock is a one-second countdown that signals expiry exactly once.
// Callbacks run outside the clock's lock.
type Clock struct {
	source   TickSource
	onTick   func(remaining int)
	onExpire func()

	mu        sync.Mutex
	remaining int
	running   bool
	expired   bool
	gen       int
	stop      func()
}

func NewClock(source TickSource, onTick func(remaining int), onExpire func()) *Clock {
	if source == nil {
		source = RealTicks{}
	}
	return &Clock{source: source, onTick: onTick, onExpire: onExpire}
}

// Start sets the countdown and begins ticking. A non-positive duration expires immediately.
func (c *Clock) Start(durationSeconds int) {
	c.mu.Lock()
	if c.running || c.expired {
		c.mu.Unlock()
		return
	}
	if durationSeconds <= 0 {
		c.remaining = 0
		c.expired = true
		c.mu.Unlock()
		if c.onExpire != nil {
			c.onExpire()
		}
		return
	}
	c.remaining = durationSeconds
	c.running = true
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	c.attach(gen)
}

// Resume restarts ticking from the current remaining time after a Stop.
func (c *Clock) Resume() {
	c.mu.Lock()
	if c.running || c.expired || c.remaining <= 0 {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	c.attach(gen)
}

func (c *Clock) attach(gen int) {
	stop := c.source.Start(time.Second, func() { c.tick(gen) })

	c.mu.Lock()
	if !c.running || c.gen != gen {
		// stopped or expired before the source handed back its stop func
		c.mu.Unlock()
		stop()
		return
	}
	c.stop = stop
	c.mu.Unlock()
}

func (c *Clock) tick(gen int) {
	c.mu.Lock()
	if !c.running || c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.remaining > 0 {
		c.remaining--
	}
	remaining := c.remaining
	var stop func()
	expired := remaining == 0
	if expired {
		c.running = false
		c.expired = true
		stop = c.stop
		c.stop = nil
	}
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if c.onTick != nil {
		c.onTick(remaining)
	}
	if expired && c.onExpire != nil {
		c.onExpire()
	}
}

// Stop halts ticking. Safe to call multiple times.
func (c *Clock) Stop() {
	c.mu.Lock()
	c.running = false
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Clock) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Running reports whether the clock is currently ticking.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
