package agent

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tenzoki/agentwire/internal/codec"
	"github.com/tenzoki/agentwire/internal/ctrlproto"
	"github.com/tenzoki/agentwire/internal/transport"
	"github.com/tenzoki/agentwire/internal/wire"
)

var controlTracer = otel.Tracer("github.com/tenzoki/agentwire/public/agent")

type controlRequest = ctrlproto.Request
type controlResponse = ctrlproto.Response

// controlCodec is always Pickle (msgpack): the control channel is internal
// plumbing, not a user-facing data socket, so it is not user-configurable.
var controlCodec = func() codec.Codec {
	c, err := codec.Lookup(codec.Pickle)
	if err != nil {
		panic(err)
	}
	return c
}()

// BindControl binds the agent's administrative REP-like socket: every
// agent process exposes a reply socket for remote invocation.
func (a *Agent) BindControl(host string, port int) error {
	l, addr, err := transport.Listen(transport.TCP, host, port)
	if err != nil {
		return err
	}
	addr.Role = transport.REP
	addr.Codec = codec.Pickle
	a.controlAddr = addr
	a.controlListener = l
	go a.controlAcceptLoop(l)
	return nil
}

func (a *Agent) controlAcceptLoop(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		go a.controlReadLoop(conn)
	}
}

func (a *Agent) controlReadLoop(conn net.Conn) {
	defer conn.Close()
	for {
		f, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		var req controlRequest
		if err := controlCodec.Decode(f.Payload, &req); err != nil {
			a.logWarning("decoding control request", "error", err)
			return
		}
		a.inbox <- controlEvent{conn: conn, request: req}
	}
}

// dispatchControl executes one verb synchronously in the loop goroutine
// and writes its response back on the same connection, preserving the
// one-request-one-reply-FIFO contract.
func (a *Agent) dispatchControl(e controlEvent) {
	_, span := controlTracer.Start(context.Background(), "agent.control."+e.request.Verb, trace.WithAttributes(
		attribute.String("agentwire.agent", a.name),
		attribute.String("agentwire.verb", e.request.Verb),
	))
	resp := a.execVerb(e.request)
	if !resp.OK {
		span.SetStatus(codes.Error, resp.Error)
	}
	span.End()

	payload, err := controlCodec.Encode(resp)
	if err != nil {
		a.logWarning("encoding control response", "error", err)
		return
	}
	if err := wire.WriteFrame(e.conn, wire.Frame{Payload: payload}, false); err != nil {
		a.logWarning("writing control response", "error", err)
	}
}

func (a *Agent) execVerb(req controlRequest) controlResponse {
	switch req.Verb {
	case ctrlproto.VerbCall:
		return a.verbCall(req.Payload)
	case ctrlproto.VerbGet:
		return a.verbGet(req.Payload)
	case ctrlproto.VerbSet:
		return a.verbSet(req.Payload)
	case ctrlproto.VerbBind:
		return a.verbBind(req.Payload)
	case ctrlproto.VerbConnect:
		return a.verbConnect(req.Payload)
	case ctrlproto.VerbClose:
		return a.verbClose(req.Payload)
	case ctrlproto.VerbShutdown:
		return a.verbShutdown(req.Payload)
	default:
		return errResp(fmt.Errorf("agent: unknown verb %q", req.Verb))
	}
}

func errResp(err error) controlResponse { return controlResponse{OK: false, Error: err.Error()} }
func okResp(v interface{}) controlResponse { return controlResponse{OK: true, Value: v} }

func (a *Agent) verbCall(p map[string]interface{}) controlResponse {
	name, _ := p["method"].(string)
	args, _ := p["args"].(map[string]interface{})
	fn, ok := a.resolveMethod(HandlerSpec{Kind: HandlerKindMethod, Name: name})
	if !ok {
		return errResp(fmt.Errorf("agent: unknown method %q", name))
	}
	reply, err := fn(a, args, "")
	if err != nil {
		return errResp(err)
	}
	return okResp(reply)
}

func (a *Agent) verbGet(p map[string]interface{}) controlResponse {
	name, _ := p["name"].(string)
	v, ok := a.Get(name)
	if !ok {
		return errResp(fmt.Errorf("agent: unknown attribute %q", name))
	}
	return okResp(v)
}

func (a *Agent) verbSet(p map[string]interface{}) controlResponse {
	name, _ := p["name"].(string)
	a.Set(name, p["value"])
	return okResp(nil)
}

func (a *Agent) verbBind(p map[string]interface{}) controlResponse {
	opts := BindOptions{
		Role:  transport.Role(stringField(p, "role")),
		Alias: stringField(p, "alias"),
		Host:  stringField(p, "host"),
		Port:  intField(p, "port"),
	}
	if name := stringField(p, "handler"); name != "" {
		opts.Handler = HandlerSpec{Kind: HandlerKindMethod, Name: name}
	}
	addr, err := a.Bind(opts)
	if err != nil {
		return errResp(err)
	}
	return okResp(addr.String())
}

func (a *Agent) verbConnect(p map[string]interface{}) controlResponse {
	addrStr := stringField(p, "address")
	addr, err := transport.Parse(addrStr)
	if err != nil {
		return errResp(err)
	}
	addr.Role = transport.Role(stringField(p, "role"))
	opts := ConnectOptions{Address: addr, Alias: stringField(p, "alias")}
	if name := stringField(p, "handler"); name != "" {
		opts.Handler = HandlerSpec{Kind: HandlerKindMethod, Name: name}
	}
	local, err := a.Connect(opts)
	if err != nil {
		return errResp(err)
	}
	return okResp(local.String())
}

func (a *Agent) verbClose(p map[string]interface{}) controlResponse {
	if err := a.Close(stringField(p, "alias")); err != nil {
		return errResp(err)
	}
	return okResp(nil)
}

func (a *Agent) verbShutdown(p map[string]interface{}) controlResponse {
	go func() {
		time.Sleep(10 * time.Millisecond) // let the response flush before teardown
		a.Stop()
	}()
	return okResp(nil)
}

func stringField(p map[string]interface{}, key string) string {
	v, _ := p[key].(string)
	return v
}

// intField recovers an integer that has round-tripped through the
// control channel's msgpack encoding, which may widen or narrow it to any
// of Go's integer kinds or float64 depending on its magnitude.
func intField(p map[string]interface{}, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
