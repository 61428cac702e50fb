package session

import "time"

// TimerEngine is a cancellable per-session countdown. It never mutates state
// from the scheduling goroutine: every tick is handed back through deliver,
// which the owning GameSession wires to its serialized event queue, so all
// timer state changes happen on the session worker. A generation counter
// bumped on start/stop/pause/resume invalidates ticks scheduled before the
// change, closing the pause/resume/expire race.
type TimerEngine struct {
	deliver  func(func())
	interval time.Duration

	remaining int
	running   bool
	paused    bool
	panicMode bool
	gen       uint64

	onTick   func(remaining int)
	onExpire func()
}

func NewTimerEngine(deliver func(func()), interval time.Duration, onTick func(int), onExpire func()) *TimerEngine {
	if interval <= 0 {
		interval = time.Second
	}
	return &TimerEngine{
		deliver:  deliver,
		interval: interval,
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Start arms the countdown. It is a no-op while already running, guarding
// against duplicate timer creation from redundant calls.
func (t *TimerEngine) Start(seconds int) {
	if t.running || seconds <= 0 {
		return
	}
	t.remaining = seconds
	t.running = true
	t.paused = false
	t.panicMode = false
	t.gen++
	t.schedule()
}

// Pause freezes the countdown. Any tick already in flight carries a stale
// generation and will be dropped.
func (t *TimerEngine) Pause() {
	if !t.running || t.paused {
		return
	}
	t.paused = true
	t.gen++
}

// Resume restarts the countdown after a pause.
func (t *TimerEngine) Resume() {
	if !t.running || !t.paused {
		return
	}
	t.paused = false
	t.gen++
	t.schedule()
}

// Stop cancels the countdown without firing expiry.
func (t *TimerEngine) Stop() {
	if !t.running {
		return
	}
	t.running = false
	t.paused = false
	t.gen++
}

// EnterPanic flags the urgency state. It is honored only once per countdown
// and only at or below the caller-supplied threshold; it does not change the
// remaining time. Returns whether the flag was newly set.
func (t *TimerEngine) EnterPanic(threshold int) bool {
	if !t.running || t.panicMode || t.remaining > threshold {
		return false
	}
	t.panicMode = true
	return true
}

func (t *TimerEngine) Remaining() int { return t.remaining }
func (t *TimerEngine) Running() bool  { return t.running }
func (t *TimerEngine) Paused() bool   { return t.paused }
func (t *TimerEngine) InPanic() bool  { return t.panicMode }

func (t *TimerEngine) schedule() {
	gen := t.gen
	time.AfterFunc(t.interval, func() {
		t.deliver(func() { t.tick(gen) })
	})
}

// tick runs on the session worker. Stale generations are dropped so a tick
// scheduled before a pause cannot decrement after resume.
func (t *TimerEngine) tick(gen uint64) {
	if gen != t.gen || !t.running || t.paused {
		return
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.onTick != nil {
		t.onTick(t.remaining)
	}
	if t.remaining == 0 {
		t.running = false
		t.gen++
		if t.onExpire != nil {
			t.onExpire()
		}
		return
	}
	t.schedule()
}
