// Package operator provides the top-level convenience entry points a
// process uses to stand up the runtime: a name server, an agent, or the
// logging agent, each started in-process and wired to the name registry.
package operator

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/tenzoki/agentwire/internal/transport"
	"github.com/tenzoki/agentwire/public/agent"
	"github.com/tenzoki/agentwire/public/nameserver"
	"github.com/tenzoki/agentwire/public/proxy"
)

// Handle bundles a running agent with the context cancellation that stops
// it, returned by every Run* helper so callers can tear agents down
// deterministically in tests and in cmd/ entrypoints alike.
type Handle struct {
	Agent  *agent.Agent
	cancel context.CancelFunc
}

// Stop cancels the agent's event loop and waits for it to exit.
func (h *Handle) Stop() {
	h.cancel()
	h.Agent.Stop()
}

// RunNameserver starts a name server bound at host:port (port 0 assigns
// one) and returns it running in a background goroutine, the idiomatic Go
// stand-in for osbrain's run_nameserver spawning a dedicated process.
func RunNameserver(host string, port int, logger logr.Logger) (*nameserver.Service, *Handle, error) {
	svc, err := nameserver.New(host, port, logger)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	go svc.Run(ctx)
	return svc, &Handle{Agent: svc.Agent, cancel: cancel}, nil
}

// RunAgent creates an agent named name, binds its control socket at
// host:0, registers it with the name server at nsAddr, and starts its
// event loop in a background goroutine.
func RunAgent(name string, nsAddr transport.Address, host string, logger logr.Logger) (*agent.Agent, *Handle, error) {
	a := agent.New(name, logger)
	if err := a.BindControl(host, 0); err != nil {
		return nil, nil, fmt.Errorf("operator: binding %s control socket: %w", name, err)
	}

	ns, err := nameserver.Dial(nsAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("operator: dialing nameserver for %s: %w", name, err)
	}
	defer ns.Close()
	if err := ns.Register(name, a.ControlAddress()); err != nil {
		return nil, nil, fmt.Errorf("operator: registering %s: %w", name, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	return a, &Handle{Agent: a, cancel: cancel}, nil
}

// ProxyTo resolves name through the name server at nsAddr and returns a
// Proxy to it, the common "find an agent by name and call into it" path.
func ProxyTo(nsAddr transport.Address, name string) (*proxy.Proxy, error) {
	ns, err := nameserver.Dial(nsAddr)
	if err != nil {
		return nil, err
	}
	defer ns.Close()

	addr, err := ns.Lookup(name)
	if err != nil {
		return nil, err
	}
	return proxy.Connect(addr, name)
}
