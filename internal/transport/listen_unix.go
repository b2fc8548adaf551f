//go:build !windows

// IPC (unix domain socket) binding is not supported on Windows, the same
// limitation osbrain's own test suite documents (skip_windows_ipc in the
// original test fixtures).
package transport

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// ListenIPC binds a Unix domain socket at path, removing any stale socket
// file left behind by a prior, uncleanly terminated process, and sets an
// explicit file mode rather than relying on the process umask.
func ListenIPC(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("transport: removing stale ipc socket %s: %w", path, err)
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: listen ipc %s: %w", path, err)
	}

	if err := unix.Chmod(path, 0o600); err != nil {
		l.Close()
		return nil, fmt.Errorf("transport: chmod ipc socket %s: %w", path, err)
	}

	return l, nil
}

// DialIPC connects to a Unix domain socket.
func DialIPC(path string) (net.Conn, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: dial ipc %s: %w", path, err)
	}
	return conn, nil
}
