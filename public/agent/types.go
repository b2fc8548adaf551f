// Package agent implements the per-agent runtime: the event loop that
// multiplexes the administrative control socket, dynamically bound/connected
// data sockets, and timers, together with publish/subscribe and
// synchronized publish/subscribe.
package agent

import (
	"fmt"
	"time"

	"github.com/tenzoki/agentwire/internal/codec"
	"github.com/tenzoki/agentwire/internal/transport"
)

// Message is the payload type handlers operate on. Agents exchange
// arbitrary codec-decodable values; handlers type-assert to whatever shape
// they expect, the same latitude osbrain's Python handlers have.
type Message = interface{}

// MethodFunc is a named unit of behavior: a data/topic handler, a reply
// producer, or an RPC method reachable through the control channel's
// "call" verb. topic is empty where the dispatch site has no topic (plain
// REQ/REP/PUSH/PULL, or a "call" invocation). Only the reply value is used
// when the dispatch site is reply-bearing (REP, SYNC_PUB); it is ignored
// for fire-and-forget sites.
type MethodFunc func(a *Agent, msg Message, topic string) (reply interface{}, err error)

// ErrorFunc is invoked when a SYNC request's deadline elapses before a
// reply arrives.
type ErrorFunc func(a *Agent)

// HandlerKind discriminates the two ways a handler can be named across the
// control channel: a method resolved by name on the agent, or one of a
// small set of well-known free functions.
type HandlerKind string

const (
	HandlerKindMethod  HandlerKind = "method"
	HandlerKindBuiltin HandlerKind = "builtin"
)

// HandlerSpec names a handler without transporting a closure. Both ends
// must resolve Name to the same underlying function — crossing the control
// channel, this is a string; in-process, resolveMethod looks it up in the
// agent's method/builtin registries.
type HandlerSpec struct {
	Kind HandlerKind
	Name string
}

// TopicHandlerSpec maps topic prefixes to handler specs, the wire form of
// a Go map[string]Handler passed to Connect/Bind.
type TopicHandlerSpec map[string]HandlerSpec

// BindOptions configures a Bind call.
type BindOptions struct {
	Role      transport.Role
	Alias     string // auto-generated if empty
	Handler   HandlerSpec
	Handlers  TopicHandlerSpec // mutually exclusive with Handler
	Host      string           // defaults to "0.0.0.0"
	Port      int              // 0 lets the transport assign one
	Transport transport.Kind   // defaults to TCP
	Codec     codec.Name       // defaults to Pickle
	Compress  bool             // opt in to stream compression via klauspost/compress
}

// ConnectOptions configures a Connect call.
type ConnectOptions struct {
	Address  transport.Address
	Alias    string // auto-generated if empty
	Handler  HandlerSpec
	Handlers TopicHandlerSpec
}

// SendOptions configures a SYNC_SUB subscriber's outgoing request.
type SendOptions struct {
	Handler  HandlerSpec
	Wait     time.Duration // deadline after Send; used only when HasWait is set
	OnError  HandlerSpec   // resolved to an ErrorFunc registered via HandleError
	HasWait  bool          // false means no deadline
}

// ErrAliasInUse is returned when a bind/connect alias collides with an
// existing socket alias, or a timer alias with an existing timer alias, on
// the same agent: such a collision is always a synchronous error, never a
// silent overwrite. Socket aliases and timer aliases are checked
// separately, so a socket and a timer may share an alias.
type ErrAliasInUse struct{ Alias string }

func (e ErrAliasInUse) Error() string {
	return fmt.Sprintf("agent: alias %q already in use", e.Alias)
}

// ErrUnknownAlias is returned by control verbs and internal lookups when an
// alias does not name an existing socket or timer.
type ErrUnknownAlias struct{ Alias string }

func (e ErrUnknownAlias) Error() string {
	return fmt.Sprintf("agent: unknown alias %q", e.Alias)
}

// ErrHandlerRequired is returned when binding a reply-producing socket
// (REP, SYNC_PUB) without a handler.
type ErrHandlerRequired struct{ Role transport.Role }

func (e ErrHandlerRequired) Error() string {
	return fmt.Sprintf("agent: role %s requires a handler", e.Role)
}
