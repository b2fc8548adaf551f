package transport

import (
	"fmt"
	"net"
)

// Listen binds a at the given kind/endpoint. For TCP, port 0 asks the OS to
// assign a free port; the assigned address is read back from the listener.
func Listen(kind Kind, host string, port int) (net.Listener, Address, error) {
	switch kind {
	case TCP:
		l, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
		if err != nil {
			return nil, Address{}, fmt.Errorf("transport: listen tcp %s:%d: %w", host, port, err)
		}
		tcpAddr := l.Addr().(*net.TCPAddr)
		return l, Address{Host: host, Port: tcpAddr.Port, Transport: TCP}, nil
	case IPC:
		l, err := ListenIPC(host)
		if err != nil {
			return nil, Address{}, err
		}
		return l, Address{Host: host, Transport: IPC}, nil
	default:
		return nil, Address{}, fmt.Errorf("transport: unknown transport kind %q", kind)
	}
}

// Dial connects to the given address's network endpoint.
func Dial(a Address) (net.Conn, error) {
	switch a.Transport {
	case TCP:
		conn, err := net.Dial("tcp", a.Endpoint())
		if err != nil {
			return nil, fmt.Errorf("transport: dial tcp %s: %w", a.Endpoint(), err)
		}
		return conn, nil
	case IPC:
		return DialIPC(a.Host)
	default:
		return nil, fmt.Errorf("transport: unknown transport kind %q", a.Transport)
	}
}
