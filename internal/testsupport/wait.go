// Package testsupport provides polling helpers for integration tests that
// exercise the runtime across goroutines/processes, standing in for
// osbrain's wait_agent_attr/wait_agent_list test fixtures.
package testsupport

import (
	"fmt"
	"time"
)

// DefaultTimeout bounds how long the Wait* helpers poll before failing,
// generous enough for slow CI runners without hanging a broken test
// forever.
const DefaultTimeout = 5 * time.Second

const pollInterval = 10 * time.Millisecond

// WaitFor polls cond until it returns true or timeout elapses, returning
// an error naming what was being waited for.
func WaitFor(timeout time.Duration, what string, cond func() bool) error {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("testsupport: timed out waiting for %s", what)
		}
		time.Sleep(pollInterval)
	}
}

// WaitForLen polls lenFn until it reports at least n, e.g. for an agent's
// connected-subscriber count or a received-messages slice's length.
func WaitForLen(n int, what string, lenFn func() int) error {
	return WaitFor(DefaultTimeout, what, func() bool { return lenFn() >= n })
}

// WaitForAttr polls getFn until it returns a value equal to want.
func WaitForAttr(want interface{}, what string, getFn func() (interface{}, bool)) error {
	return WaitFor(DefaultTimeout, what, func() bool {
		v, ok := getFn()
		return ok && v == want
	})
}
