// Package proxy implements the client side of the remote invocation
// channel: a handle other agents, the name server, and operator code use
// to call/get/set/bind/connect/close/shutdown a remote agent without
// sharing its process.
package proxy

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tenzoki/agentwire/internal/codec"
	"github.com/tenzoki/agentwire/internal/ctrlproto"
	"github.com/tenzoki/agentwire/internal/transport"
	"github.com/tenzoki/agentwire/internal/wire"
)

// tracer instruments every control round trip so a caller with tracing
// configured (via otel's global TracerProvider) can see remote invocation
// latency and failures across a fleet of agents.
var tracer = otel.Tracer("github.com/tenzoki/agentwire/public/proxy")

// Proxy is a synchronous client for one agent's control socket. Every
// exported method round-trips exactly one request and one reply, the
// same one-request-one-reply-FIFO discipline the control channel
// promises; a mutex serializes callers sharing one Proxy onto the one
// persistent connection.
type Proxy struct {
	addr transport.Address
	name string

	mu   sync.Mutex
	conn net.Conn

	codec codec.Codec
}

// Connect dials the control socket at addr. name is a human label (the
// target agent's registered name) used in error messages and as the
// target attribute of each round trip's span.
func Connect(addr transport.Address, name string) (*Proxy, error) {
	conn, err := transport.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("proxy: dialing %s control socket: %w", name, err)
	}
	c, err := codec.Lookup(codec.Pickle)
	if err != nil {
		return nil, err
	}
	return &Proxy{addr: addr, name: name, conn: conn, codec: c}, nil
}

// Close releases the underlying connection without affecting the remote
// agent.
func (p *Proxy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.Close()
}

// Address returns the remote agent's control address.
func (p *Proxy) Address() transport.Address { return p.addr }

func (p *Proxy) roundTrip(req ctrlproto.Request) (ctrlproto.Response, error) {
	_, span := tracer.Start(context.Background(), "proxy."+req.Verb, trace.WithAttributes(
		attribute.String("agentwire.target", p.name),
		attribute.String("agentwire.verb", req.Verb),
	))
	defer span.End()

	resp, err := p.roundTripTraced(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}
	if !resp.OK {
		span.SetStatus(codes.Error, resp.Error)
	}
	return resp, nil
}

func (p *Proxy) roundTripTraced(req ctrlproto.Request) (ctrlproto.Response, error) {
	payload, err := p.codec.Encode(req)
	if err != nil {
		return ctrlproto.Response{}, fmt.Errorf("proxy: encoding request: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := wire.WriteFrame(p.conn, wire.Frame{Payload: payload}, false); err != nil {
		return ctrlproto.Response{}, fmt.Errorf("proxy: sending %s to %s: %w", req.Verb, p.name, err)
	}
	f, err := wire.ReadFrame(p.conn)
	if err != nil {
		return ctrlproto.Response{}, fmt.Errorf("proxy: reading %s reply from %s: %w", req.Verb, p.name, err)
	}
	var resp ctrlproto.Response
	if err := p.codec.Decode(f.Payload, &resp); err != nil {
		return ctrlproto.Response{}, fmt.Errorf("proxy: decoding %s reply from %s: %w", req.Verb, p.name, err)
	}
	return resp, nil
}

func (p *Proxy) call(verb string, payload map[string]interface{}) (interface{}, error) {
	resp, err := p.roundTrip(ctrlproto.Request{Verb: verb, Payload: payload})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("proxy: %s on %s: %s", verb, p.name, resp.Error)
	}
	return resp.Value, nil
}

// Call invokes a named method registered on the remote agent.
func (p *Proxy) Call(method string, args map[string]interface{}) (interface{}, error) {
	return p.call(ctrlproto.VerbCall, map[string]interface{}{"method": method, "args": args})
}

// Ping round-trips a lightweight request to confirm the remote agent is
// still answering, without regard to whether the request itself succeeds
// at the application level — only a transport failure (closed listener,
// refused connection) is reported as an error.
func (p *Proxy) Ping() error {
	_, err := p.roundTrip(ctrlproto.Request{Verb: ctrlproto.VerbGet, Payload: map[string]interface{}{"name": "__ping__"}})
	return err
}

// Get reads a remote attribute.
func (p *Proxy) Get(name string) (interface{}, error) {
	return p.call(ctrlproto.VerbGet, map[string]interface{}{"name": name})
}

// Set assigns a remote attribute.
func (p *Proxy) Set(name string, value interface{}) error {
	_, err := p.call(ctrlproto.VerbSet, map[string]interface{}{"name": name, "value": value})
	return err
}

// BindOptions mirrors agent.BindOptions' wire-transportable subset.
type BindOptions struct {
	Role    transport.Role
	Alias   string
	Host    string
	Port    int
	Handler string
}

// Bind asks the remote agent to bind a new socket, returning its address.
func (p *Proxy) Bind(opts BindOptions) (transport.Address, error) {
	v, err := p.call(ctrlproto.VerbBind, map[string]interface{}{
		"role": string(opts.Role), "alias": opts.Alias,
		"host": opts.Host, "port": opts.Port, "handler": opts.Handler,
	})
	if err != nil {
		return transport.Address{}, err
	}
	s, _ := v.(string)
	return transport.Parse(s)
}

// ConnectOptions mirrors agent.ConnectOptions' wire-transportable subset.
type ConnectOptions struct {
	Address transport.Address
	Alias   string
	Handler string
}

// ConnectRemote asks the remote agent to connect a new socket to address.
func (p *Proxy) ConnectRemote(opts ConnectOptions) (transport.Address, error) {
	v, err := p.call(ctrlproto.VerbConnect, map[string]interface{}{
		"address": opts.Address.String(), "role": string(opts.Address.Role),
		"alias": opts.Alias, "handler": opts.Handler,
	})
	if err != nil {
		return transport.Address{}, err
	}
	s, _ := v.(string)
	return transport.Parse(s)
}

// CloseRemote closes a socket by alias on the remote agent.
func (p *Proxy) CloseRemote(alias string) error {
	_, err := p.call(ctrlproto.VerbClose, map[string]interface{}{"alias": alias})
	return err
}

// Shutdown tells the remote agent to stop its event loop and close every
// socket.
func (p *Proxy) Shutdown() error {
	_, err := p.call(ctrlproto.VerbShutdown, nil)
	return err
}
