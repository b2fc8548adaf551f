package agent

import (
	"context"
	"time"
)

// runLoop is the single consumer of the agent's inbox: the Go translation
// of a poll-based event loop. Reader goroutines (one per connection) push
// events as they arrive; this loop is the only place those events are
// acted on, so handlers never run concurrently with each other or with
// timer/deadline bookkeeping.
func (a *Agent) runLoop(ctx context.Context) {
	for {
		deadline := a.nextTimerDeadline()
		wait := time.Until(deadline)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case ev := <-a.inbox:
			if !timer.Stop() {
				<-timer.C
			}
			a.dispatch(ev)
		case <-timer.C:
			a.fireDueTimers()
			a.checkSyncDeadlines()
		}
	}
}
