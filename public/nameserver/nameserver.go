// Package nameserver implements the name registry: a single well-known
// agent mapping names to control addresses, so any agent can
// find any other by name alone. It is built on the same agent runtime and
// remote invocation protocol as every other agent — the name server is
// not a special process kind, only a conventional one (mirroring
// osbrain's own NameServer, itself an Agent subclass).
package nameserver

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/tenzoki/agentwire/internal/transport"
	"github.com/tenzoki/agentwire/public/agent"
	"github.com/tenzoki/agentwire/public/proxy"
)

// DefaultName is the conventional name a name server registers itself
// under, the value osbrain's NameServerAgent hardcodes for its own entry.
const DefaultName = "Nameserver"

// Service is a running name server: an Agent plus the name→control
// address registry its methods mutate.
type Service struct {
	Agent *agent.Agent

	mu       sync.Mutex
	registry map[string]transport.Address
}

// New constructs a name server agent bound at host:port (port 0 picks one)
// and registers its registry methods on the control channel's "call" verb.
func New(host string, port int, logger logr.Logger) (*Service, error) {
	a := agent.New(DefaultName, logger)
	if err := a.BindControl(host, port); err != nil {
		return nil, fmt.Errorf("nameserver: binding control socket: %w", err)
	}

	s := &Service{Agent: a, registry: make(map[string]transport.Address)}
	a.HandleFunc("ns_register", s.handleRegister)
	a.HandleFunc("ns_lookup", s.handleLookup)
	a.HandleFunc("ns_list", s.handleList)
	a.HandleFunc("ns_unregister", s.handleUnregister)
	a.HandleFunc("ns_shutdown", s.handleShutdown)

	s.mu.Lock()
	s.registry[DefaultName] = a.ControlAddress()
	s.mu.Unlock()

	return s, nil
}

// Run blocks serving registry requests until ctx is cancelled.
func (s *Service) Run(ctx context.Context) { s.Agent.Run(ctx) }

// Address returns the name server's own control address, the one value
// every other process needs out-of-band to join the system.
func (s *Service) Address() transport.Address { return s.Agent.ControlAddress() }

func (s *Service) handleRegister(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
	args, _ := msg.(map[string]interface{})
	name, _ := args["name"].(string)
	addrStr, _ := args["address"].(string)
	if name == "" || addrStr == "" {
		return nil, fmt.Errorf("nameserver: register requires name and address")
	}
	addr, err := transport.Parse(addrStr)
	if err != nil {
		return nil, fmt.Errorf("nameserver: register: %w", err)
	}
	addr.Role = transport.REP

	s.mu.Lock()
	existing, taken := s.registry[name]
	s.mu.Unlock()

	if taken && s.isAlive(existing) {
		return nil, fmt.Errorf("nameserver: name %q already registered to a live agent", name)
	}

	s.mu.Lock()
	s.registry[name] = addr
	s.mu.Unlock()
	return nil, nil
}

// isAlive pings a previously-registered control address; a name is only
// reassignable once its prior occupant stops answering. Collisions are
// rejected unless the prior process is confirmed dead.
func (s *Service) isAlive(addr transport.Address) bool {
	p, err := proxy.Connect(addr, "")
	if err != nil {
		return false
	}
	defer p.Close()
	return p.Ping() == nil
}

func (s *Service) handleLookup(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
	args, _ := msg.(map[string]interface{})
	name, _ := args["name"].(string)

	s.mu.Lock()
	addr, ok := s.registry[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("nameserver: unknown name %q", name)
	}
	return addr.String(), nil
}

func (s *Service) handleList(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interface{}, len(s.registry))
	for name, addr := range s.registry {
		out[name] = addr.String()
	}
	return out, nil
}

func (s *Service) handleUnregister(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
	args, _ := msg.(map[string]interface{})
	name, _ := args["name"].(string)
	s.mu.Lock()
	delete(s.registry, name)
	s.mu.Unlock()
	return nil, nil
}

// handleShutdown cascades shutdown to every registered agent before
// stopping the name server itself: shutting down the name server shuts
// down every agent it knows about.
func (s *Service) handleShutdown(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
	s.mu.Lock()
	addrs := make([]transport.Address, 0, len(s.registry))
	for name, addr := range s.registry {
		if name == DefaultName {
			continue
		}
		addrs = append(addrs, addr)
	}
	s.mu.Unlock()

	for _, addr := range addrs {
		p, err := proxy.Connect(addr, "")
		if err != nil {
			continue // already gone
		}
		_ = p.Shutdown()
		p.Close()
	}

	go func() { a.Stop() }()
	return nil, nil
}
