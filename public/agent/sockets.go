package agent

import (
	"fmt"
	"net"
	"sync"

	"github.com/tenzoki/agentwire/internal/codec"
	"github.com/tenzoki/agentwire/internal/transport"
	"github.com/tenzoki/agentwire/internal/wire"
)

// socket is the runtime state behind one alias in the agent's registry.
// A bound socket owns a listener and a set of accepted connections (a
// PUB/REP/SYNC_PUB fan-in/fan-out point); a connected socket owns a
// single dialed connection.
type socket struct {
	alias string
	addr  transport.Address
	codec codec.Codec

	compress bool

	handler  HandlerSpec
	handlers TopicHandlerSpec
	router   *topicRouter

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	conn     net.Conn // set for Connect-created sockets
	closed   bool

	// auxAddr/auxConn carry the SYNC_PUB/SYNC_SUB auxiliary unicast leg
	// alongside the primary broadcast leg.
	auxAddr     transport.Address
	auxListener net.Listener
	auxConn     net.Conn
}

func newSocketFromBind(alias string, addr transport.Address, c codec.Codec, opts BindOptions) *socket {
	return &socket{
		alias:    alias,
		addr:     addr,
		codec:    c,
		compress: opts.Compress,
		handler:  opts.Handler,
		handlers: opts.Handlers,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Bind creates a listening socket at the requested role/transport/codec and
// registers it under alias (auto-generated if empty). Binding a
// reply-producing role without a handler is rejected.
func (a *Agent) Bind(opts BindOptions) (transport.Address, error) {
	if opts.Host == "" {
		opts.Host = "0.0.0.0"
	}
	if opts.Transport == "" {
		opts.Transport = transport.TCP
	}
	if opts.Codec == "" {
		opts.Codec = codec.Pickle
	}
	if opts.Alias == "" {
		opts.Alias = fmt.Sprintf("%s-%d", opts.Role, a.nextAliasSeq())
	}
	if requiresHandler(opts.Role) && opts.Handler.Name == "" && len(opts.Handlers) == 0 {
		return transport.Address{}, ErrHandlerRequired{Role: opts.Role}
	}

	c, err := codec.Lookup(opts.Codec)
	if err != nil {
		return transport.Address{}, err
	}

	a.mu.Lock()
	if _, exists := a.sockets[opts.Alias]; exists {
		a.mu.Unlock()
		return transport.Address{}, ErrAliasInUse{Alias: opts.Alias}
	}
	a.mu.Unlock()

	l, addr, err := transport.Listen(opts.Transport, opts.Host, opts.Port)
	if err != nil {
		return transport.Address{}, err
	}
	addr.Role = opts.Role
	addr.Codec = opts.Codec

	sock := newSocketFromBind(opts.Alias, addr, c, opts)
	sock.listener = l

	if opts.Role == transport.SyncPub {
		auxL, auxAddr, err := transport.Listen(opts.Transport, opts.Host, 0)
		if err != nil {
			l.Close()
			return transport.Address{}, fmt.Errorf("agent: binding sync reply leg: %w", err)
		}
		auxAddr.Role = transport.AsyncRep
		auxAddr.Codec = opts.Codec
		sock.auxAddr = auxAddr
		sock.auxListener = auxL
		go a.acceptLoop(sock, true)
	}

	a.mu.Lock()
	a.sockets[opts.Alias] = sock
	a.mu.Unlock()

	go a.acceptLoop(sock, false)

	return addr, nil
}

// Connect dials an existing bound socket and registers the connection under
// alias. The returned address is the twin of target — the logical
// perspective of this end of the connection.
func (a *Agent) Connect(opts ConnectOptions) (transport.Address, error) {
	if opts.Alias == "" {
		twin, err := opts.Address.Role.Twin()
		if err != nil {
			return transport.Address{}, err
		}
		opts.Alias = fmt.Sprintf("%s-%d", twin, a.nextAliasSeq())
	}

	a.mu.Lock()
	if _, exists := a.sockets[opts.Alias]; exists {
		a.mu.Unlock()
		return transport.Address{}, ErrAliasInUse{Alias: opts.Alias}
	}
	a.mu.Unlock()

	c, err := codec.Lookup(opts.Address.Codec)
	if err != nil {
		return transport.Address{}, err
	}

	conn, err := transport.Dial(opts.Address)
	if err != nil {
		return transport.Address{}, err
	}

	local := opts.Address.Twin()
	sock := &socket{
		alias:    opts.Alias,
		addr:     local,
		codec:    c,
		handler:  opts.Handler,
		handlers: opts.Handlers,
		conn:     conn,
		conns:    make(map[net.Conn]struct{}),
	}

	if opts.Address.Role == transport.SyncPub {
		// Dial the auxiliary reply leg the server reported out-of-band. The
		// caller is expected to have obtained it via the control channel
		// (ConnectSync wraps this).
		return transport.Address{}, fmt.Errorf("agent: use ConnectSync for SYNC_PUB addresses")
	}

	a.mu.Lock()
	a.sockets[opts.Alias] = sock
	a.mu.Unlock()

	go a.readLoop(sock, conn)

	return local, nil
}

// ConnectSync dials a SYNC_PUB publisher's broadcast leg plus its auxiliary
// reply leg, registering both under one alias.
func (a *Agent) ConnectSync(pubAddr, replyAddr transport.Address, alias string, sub TopicHandlerSpec) (transport.Address, error) {
	if alias == "" {
		alias = fmt.Sprintf("sync_sub-%d", a.nextAliasSeq())
	}

	a.mu.Lock()
	if _, exists := a.sockets[alias]; exists {
		a.mu.Unlock()
		return transport.Address{}, ErrAliasInUse{Alias: alias}
	}
	a.mu.Unlock()

	c, err := codec.Lookup(pubAddr.Codec)
	if err != nil {
		return transport.Address{}, err
	}

	bcastConn, err := transport.Dial(pubAddr)
	if err != nil {
		return transport.Address{}, err
	}
	auxConn, err := transport.Dial(replyAddr)
	if err != nil {
		bcastConn.Close()
		return transport.Address{}, err
	}

	local := pubAddr.Twin()
	sock := &socket{
		alias:    alias,
		addr:     local,
		codec:    c,
		handlers: sub,
		conn:     bcastConn,
		auxAddr:  replyAddr,
		auxConn:  auxConn,
		conns:    make(map[net.Conn]struct{}),
	}

	a.mu.Lock()
	a.sockets[alias] = sock
	a.mu.Unlock()

	go a.readLoop(sock, bcastConn)
	go a.readSyncReplies(sock, auxConn)

	return local, nil
}

// AuxAddress returns the auxiliary reply-leg address for a SYNC_PUB socket
// bound under alias, the address a SYNC_SUB peer must dial alongside the
// main broadcast address to complete the pair.
func (a *Agent) AuxAddress(alias string) (transport.Address, error) {
	a.mu.Lock()
	sock, ok := a.sockets[alias]
	a.mu.Unlock()
	if !ok {
		return transport.Address{}, ErrUnknownAlias{Alias: alias}
	}
	if sock.auxAddr.Role == "" {
		return transport.Address{}, fmt.Errorf("agent: alias %q has no auxiliary leg", alias)
	}
	return sock.auxAddr, nil
}

func requiresHandler(r transport.Role) bool {
	switch r {
	case transport.REP, transport.SyncPub:
		return true
	default:
		return false
	}
}

// acceptLoop accepts connections on a bound socket's listener (or its
// auxiliary reply-leg listener when aux is true) and spins up a per-connection
// reader.
func (a *Agent) acceptLoop(sock *socket, aux bool) {
	l := sock.listener
	if aux {
		l = sock.auxListener
	}
	for {
		conn, err := l.Accept()
		if err != nil {
			return // listener closed
		}
		sock.mu.Lock()
		if sock.closed {
			sock.mu.Unlock()
			conn.Close()
			return
		}
		sock.conns[conn] = struct{}{}
		sock.mu.Unlock()

		if aux {
			go a.readSyncRequests(sock, conn)
		} else {
			go a.readLoop(sock, conn)
		}
	}
}

// readLoop consumes frames from a data connection (PUB fan-out target read
// side is unused since PUB never reads; SUB/PULL/REP/PUSH read here) and
// feeds them to the agent's single-threaded dispatcher via the inbox
// channel: many reader goroutines, one consumer.
func (a *Agent) readLoop(sock *socket, conn net.Conn) {
	defer a.forgetConn(sock, conn)
	for {
		f, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		a.inbox <- dataEvent{sock: sock, conn: conn, topic: string(f.Topic), payload: f.Payload}
	}
}

// readSyncRequests consumes ASYNC_REQ frames on a SYNC_PUB's auxiliary
// leg — each carries a request id that must be echoed back with the reply.
func (a *Agent) readSyncRequests(sock *socket, conn net.Conn) {
	defer a.forgetConn(sock, conn)
	for {
		f, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		a.inbox <- syncRequestEvent{sock: sock, conn: conn, requestID: string(f.Topic), payload: f.Payload}
	}
}

// readSyncReplies consumes ASYNC_REP frames on a SYNC_SUB's auxiliary leg,
// demultiplexed by request id against the pending table.
func (a *Agent) readSyncReplies(sock *socket, conn net.Conn) {
	defer a.forgetConn(sock, conn)
	for {
		f, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		a.inbox <- syncReplyEvent{sock: sock, requestID: string(f.Topic), payload: f.Payload}
	}
}

func (a *Agent) forgetConn(sock *socket, conn net.Conn) {
	sock.mu.Lock()
	delete(sock.conns, conn)
	sock.mu.Unlock()
}

// send frames and writes payload to every connection attached to sock
// (broadcast for PUB/SYNC_PUB; single-connection for PUSH/REQ-style
// sockets), in registration order so per-subscriber ordering is preserved.
func (a *Agent) send(sock *socket, topic string, payload []byte) error {
	if topic != "" && !sock.codec.AllowsTopic() {
		return fmt.Errorf("agent: alias %q uses codec %q, which forbids topic framing", sock.alias, sock.codec.Name())
	}
	f := wire.Frame{Topic: []byte(topic), Payload: payload}

	sock.mu.Lock()
	defer sock.mu.Unlock()

	if sock.conn != nil {
		return wire.WriteFrame(sock.conn, f, sock.compress)
	}
	for conn := range sock.conns {
		if err := wire.WriteFrame(conn, f, sock.compress); err != nil {
			return err
		}
	}
	return nil
}

// Close tears down the socket registered under alias, closing its
// listener/connections and removing it from the registry.
func (a *Agent) Close(alias string) error {
	a.mu.Lock()
	sock, ok := a.sockets[alias]
	if ok {
		delete(a.sockets, alias)
	}
	a.mu.Unlock()
	if !ok {
		return ErrUnknownAlias{Alias: alias}
	}
	closeSocket(sock)
	return nil
}

func closeSocket(sock *socket) {
	sock.mu.Lock()
	defer sock.mu.Unlock()
	sock.closed = true
	if sock.listener != nil {
		sock.listener.Close()
	}
	if sock.auxListener != nil {
		sock.auxListener.Close()
	}
	if sock.conn != nil {
		sock.conn.Close()
	}
	if sock.auxConn != nil {
		sock.auxConn.Close()
	}
	for conn := range sock.conns {
		conn.Close()
	}
}
