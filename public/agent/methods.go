package agent

// builtins holds the small set of well-known handlers every agent exposes
// without registration, mirroring the free functions osbrain ships
// alongside user-defined methods.
var builtins = map[string]MethodFunc{
	// discard drops a message silently; useful wiring a PULL/SUB socket
	// that exists only to keep a connection's keepalive/flow-control
	// behavior alive.
	"discard": func(a *Agent, msg Message, topic string) (interface{}, error) {
		return nil, nil
	},
	// echo replies with the message unchanged, handy for REP sockets used
	// purely as liveness probes.
	"echo": func(a *Agent, msg Message, topic string) (interface{}, error) {
		return msg, nil
	},
}
