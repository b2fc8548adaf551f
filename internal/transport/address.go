// Package transport implements the uniform bind/connect abstraction over
// TCP and local IPC endpoints, and the Address tuple with its twin()
// operator.
package transport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tenzoki/agentwire/internal/codec"
)

// Kind is the transport half of an Address: tcp or ipc.
type Kind string

const (
	TCP Kind = "tcp"
	IPC Kind = "ipc"
)

// Role is the communication-pattern half of a socket.
type Role string

const (
	PUB      Role = "PUB"
	SUB      Role = "SUB"
	REQ      Role = "REQ"
	REP      Role = "REP"
	PUSH     Role = "PUSH"
	PULL     Role = "PULL"
	SyncPub  Role = "SYNC_PUB"
	SyncSub  Role = "SYNC_SUB"
	AsyncReq Role = "ASYNC_REQ"
	AsyncRep Role = "ASYNC_REP"
)

var twins = map[Role]Role{
	PUB: SUB, SUB: PUB,
	REQ: REP, REP: REQ,
	PUSH: PULL, PULL: PUSH,
	SyncPub: SyncSub, SyncSub: SyncPub,
	AsyncReq: AsyncRep, AsyncRep: AsyncReq,
}

// Twin returns the complementary role for the other end of a connection.
func (r Role) Twin() (Role, error) {
	t, ok := twins[r]
	if !ok {
		return "", fmt.Errorf("transport: role %q has no twin", r)
	}
	return t, nil
}

// Address is the tuple (host, port, transport, role, codec) identifying one
// end of a socket. For IPC, Host carries the filesystem path and Port is
// unused.
type Address struct {
	Host      string
	Port      int
	Transport Kind
	Role      Role
	Codec     codec.Name
}

// Twin returns the same address with Role swapped to its complement:
// c == b.twin() and b.twin().twin() == b.
func (a Address) Twin() Address {
	t, err := a.Role.Twin()
	if err != nil {
		// Twin() on a role with no defined complement is a programmer
		// error (bind/connect validation should have caught it earlier).
		panic(err)
	}
	b := a
	b.Role = t
	return b
}

// String renders the address using the "transport://host:port" / "ipc://path"
// syntax.
func (a Address) String() string {
	if a.Transport == IPC {
		return "ipc://" + a.Host
	}
	return fmt.Sprintf("tcp://%s:%d", a.Host, a.Port)
}

// Endpoint returns the bare network endpoint (without the role/codec
// metadata) suitable for net.Dial/net.Listen.
func (a Address) Endpoint() string {
	if a.Transport == IPC {
		return a.Host
	}
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Parse parses "tcp://host:port" or "ipc://path" into an Address. Role and
// Codec are not part of the wire syntax and must be set by the caller —
// bind/connect parameters carry them separately.
func Parse(s string) (Address, error) {
	switch {
	case strings.HasPrefix(s, "tcp://"):
		rest := strings.TrimPrefix(s, "tcp://")
		host, portStr, err := splitHostPort(rest)
		if err != nil {
			return Address{}, fmt.Errorf("transport: parse %q: %w", s, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Address{}, fmt.Errorf("transport: parse %q: invalid port: %w", s, err)
		}
		return Address{Host: host, Port: port, Transport: TCP}, nil
	case strings.HasPrefix(s, "ipc://"):
		path := strings.TrimPrefix(s, "ipc://")
		if path == "" {
			return Address{}, fmt.Errorf("transport: parse %q: empty ipc path", s)
		}
		return Address{Host: path, Transport: IPC}, nil
	default:
		return Address{}, fmt.Errorf("transport: parse %q: unrecognized scheme", s)
	}
}

func splitHostPort(s string) (string, string, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("missing ':port'")
	}
	return s[:idx], s[idx+1:], nil
}
