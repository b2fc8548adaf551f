package nameserver

import (
	"fmt"

	"github.com/tenzoki/agentwire/internal/transport"
	"github.com/tenzoki/agentwire/public/proxy"
)

// NSProxy is the client-side handle every other agent dials to register
// itself and to resolve other agents by name.
type NSProxy struct {
	p *proxy.Proxy
}

// Dial connects to a name server's control socket at addr.
func Dial(addr transport.Address) (*NSProxy, error) {
	p, err := proxy.Connect(addr, DefaultName)
	if err != nil {
		return nil, err
	}
	return &NSProxy{p: p}, nil
}

// Close releases the underlying connection.
func (n *NSProxy) Close() error { return n.p.Close() }

// Register records name -> addr, failing if name is already registered to
// a live agent.
func (n *NSProxy) Register(name string, addr transport.Address) error {
	_, err := n.p.Call("ns_register", map[string]interface{}{
		"name": name, "address": addr.String(),
	})
	return err
}

// Lookup resolves name to its registered control address.
func (n *NSProxy) Lookup(name string) (transport.Address, error) {
	v, err := n.p.Call("ns_lookup", map[string]interface{}{"name": name})
	if err != nil {
		return transport.Address{}, err
	}
	s, ok := v.(string)
	if !ok {
		return transport.Address{}, fmt.Errorf("nameserver: malformed lookup reply for %q", name)
	}
	addr, err := transport.Parse(s)
	if err != nil {
		return transport.Address{}, err
	}
	addr.Role = transport.REP
	return addr, nil
}

// List returns every registered name and its control address.
func (n *NSProxy) List() (map[string]transport.Address, error) {
	v, err := n.p.Call("ns_list", nil)
	if err != nil {
		return nil, err
	}
	raw, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("nameserver: malformed list reply")
	}
	out := make(map[string]transport.Address, len(raw))
	for name, val := range raw {
		s, _ := val.(string)
		addr, err := transport.Parse(s)
		if err != nil {
			continue
		}
		addr.Role = transport.REP
		out[name] = addr
	}
	return out, nil
}

// Unregister removes name from the registry.
func (n *NSProxy) Unregister(name string) error {
	_, err := n.p.Call("ns_unregister", map[string]interface{}{"name": name})
	return err
}

// Shutdown cascades shutdown to every registered agent, then the name
// server itself.
func (n *NSProxy) Shutdown() error {
	_, err := n.p.Call("ns_shutdown", nil)
	return err
}
