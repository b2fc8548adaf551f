package agent

import "time"

// timerEntry is a scheduled callback. A zero period fires once at next
// and is not rescheduled ("after"); a non-zero period reschedules
// relative to the nominal deadline each time it fires ("each"), not
// relative to wall-clock now, so a slow handler does not drift the
// schedule. A timer that falls behind by whole periods fires once and
// skips ahead to the first period boundary after now, so missed periods
// do not cause catch-up bursts.
type timerEntry struct {
	alias   string
	handler HandlerSpec
	period  time.Duration
	next    time.Time
}

// Each schedules handler to fire every period, starting one period from now.
func (a *Agent) Each(period time.Duration, h HandlerSpec, alias string) error {
	return a.addTimer(alias, h, period, time.Now().Add(period))
}

// After schedules handler to fire once, delay from now.
func (a *Agent) After(delay time.Duration, h HandlerSpec, alias string) error {
	return a.addTimer(alias, h, 0, time.Now().Add(delay))
}

func (a *Agent) addTimer(alias string, h HandlerSpec, period time.Duration, next time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.timers[alias]; exists {
		return ErrAliasInUse{Alias: alias}
	}
	a.timers[alias] = &timerEntry{alias: alias, handler: h, period: period, next: next}
	return nil
}

// StopTimer cancels a scheduled timer by alias.
func (a *Agent) StopTimer(alias string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.timers[alias]; !exists {
		return ErrUnknownAlias{Alias: alias}
	}
	delete(a.timers, alias)
	return nil
}

// nextTimerDeadline returns the soonest scheduled timer deadline across
// timers and pending SYNC requests, bounded by defaultIdleSlice so the
// loop still wakes to re-evaluate state with nothing scheduled.
func (a *Agent) nextTimerDeadline() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	deadline := time.Now().Add(defaultIdleSlice)
	for _, t := range a.timers {
		if t.next.Before(deadline) {
			deadline = t.next
		}
	}
	for _, p := range a.pending {
		if !p.deadline.IsZero() && p.deadline.Before(deadline) {
			deadline = p.deadline
		}
	}
	return deadline
}

// fireDueTimers runs (from the loop goroutine only) every timer whose
// deadline has elapsed, then reschedules periodic ones from the nominal
// deadline, not from now.
func (a *Agent) fireDueTimers() {
	now := time.Now()

	a.mu.Lock()
	due := make([]*timerEntry, 0)
	for _, t := range a.timers {
		if !t.next.After(now) {
			due = append(due, t)
		}
	}
	a.mu.Unlock()

	for _, t := range due {
		a.invokeHandler(t.handler, nil, "")

		if t.period == 0 {
			a.mu.Lock()
			delete(a.timers, t.alias)
			a.mu.Unlock()
			continue
		}
		t.next = t.next.Add(t.period)
		if t.next.Before(now) {
			// Missed one or more periods entirely (e.g. the process was
			// suspended); skip ahead to the first period boundary after
			// now rather than firing a backlog.
			missed := now.Sub(t.next)/t.period + 1
			t.next = t.next.Add(missed * t.period)
		}
	}
}
