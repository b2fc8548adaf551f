package agent

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/tenzoki/agentwire/internal/wire"
)

// topicRouter resolves a topic to the handler whose key is its longest
// matching prefix, dropping the message silently if no key matches.
// Matches are memoized by the topic's xxhash digest since the loop
// goroutine re-evaluates the same hot topics repeatedly during a busy
// publish stream.
type topicRouter struct {
	handlers TopicHandlerSpec
	byLength []string // keys sorted longest-first
	cache    map[uint64]string
}

func newTopicRouter(h TopicHandlerSpec) *topicRouter {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	return &topicRouter{handlers: h, byLength: keys, cache: make(map[uint64]string)}
}

func (r *topicRouter) match(topic string) (HandlerSpec, bool) {
	digest := xxhash.Sum64String(topic)
	if prefix, ok := r.cache[digest]; ok {
		// A cached "" is either a recorded miss or a match on a "" key;
		// the handler map tells which.
		spec, found := r.handlers[prefix]
		return spec, found
	}

	for _, prefix := range r.byLength {
		if strings.HasPrefix(topic, prefix) {
			r.cache[digest] = prefix
			return r.handlers[prefix], true
		}
	}
	r.cache[digest] = ""
	return HandlerSpec{}, false
}

// routerFor lazily builds and caches the topicRouter for a socket's
// TopicHandlerSpec the first time it is needed.
func (sock *socket) routerFor() *topicRouter {
	if sock.router == nil {
		sock.router = newTopicRouter(sock.handlers)
	}
	return sock.router
}

// decode unmarshals a frame payload through the socket's codec into a
// generic value a MethodFunc can type-assert on.
func (sock *socket) decode(payload []byte) (interface{}, error) {
	var v interface{}
	if err := sock.codec.Decode(payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// dispatch runs in the loop goroutine only, preserving the single-thread
// handler-execution invariant.
func (a *Agent) dispatch(ev event) {
	switch e := ev.(type) {
	case dataEvent:
		a.dispatchData(e)
	case controlEvent:
		a.dispatchControl(e)
	case syncRequestEvent:
		a.dispatchSyncRequest(e)
	case syncReplyEvent:
		a.dispatchSyncReply(e)
	}
}

func (a *Agent) dispatchData(e dataEvent) {
	msg, err := e.sock.decode(e.payload)
	if err != nil {
		a.logWarning("decoding message", "alias", e.sock.alias, "error", err)
		return
	}

	spec, ok := a.resolveHandlerSpec(e.sock, e.topic)
	if !ok {
		return // no matching handler/topic: dropped silently
	}

	reply := a.invokeHandler(spec, msg, e.topic)
	if e.conn != nil && requiresHandler(e.sock.addr.Role) {
		a.writeReply(e.sock, e.conn, reply)
	}
}

// resolveHandlerSpec picks between the single-callable form and the
// topic-keyed form a socket was bound/connected with.
func (a *Agent) resolveHandlerSpec(sock *socket, topic string) (HandlerSpec, bool) {
	if len(sock.handlers) > 0 {
		return sock.routerFor().match(topic)
	}
	if sock.handler.Name != "" {
		return sock.handler, true
	}
	return HandlerSpec{}, false
}

// invokeHandler resolves and calls a named handler, catching and logging
// any error it returns or panic it raises rather than letting it escape the
// loop goroutine: the failure is logged and, for reply-bearing sockets,
// turned into a structured error reply.
func (a *Agent) invokeHandler(spec HandlerSpec, msg Message, topic string) (reply interface{}) {
	defer func() {
		if r := recover(); r != nil {
			a.logWarning("handler panic", "name", spec.Name, "panic", r)
			reply = errorReply{Error: fmt.Sprintf("handler panic: %v", r)}
		}
	}()
	fn, ok := a.resolveMethod(spec)
	if !ok {
		a.logWarning("unresolved handler", "name", spec.Name)
		return errorReply{Error: "unresolved handler: " + spec.Name}
	}
	reply, err := fn(a, msg, topic)
	if err != nil {
		a.logWarning("handler error", "name", spec.Name, "error", err)
		return errorReply{Error: err.Error()}
	}
	return reply
}

// errorReply is the structured value a reply-bearing socket sends back
// when its handler returns an error.
type errorReply struct {
	Error string `json:"error" msgpack:"error"`
}

func (a *Agent) writeReply(sock *socket, conn net.Conn, reply interface{}) {
	payload, err := sock.codec.Encode(reply)
	if err != nil {
		a.logWarning("encoding reply", "alias", sock.alias, "error", err)
		return
	}
	f := wire.Frame{Payload: payload}
	if err := wire.WriteFrame(conn, f, sock.compress); err != nil {
		a.logWarning("writing reply", "alias", sock.alias, "error", err)
	}
}
