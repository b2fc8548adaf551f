// Command agent starts the agents described in a YAML topology file,
// wiring their binds/connects to the name server they register with.
// Handler names in the topology file resolve
// against the runtime's built-in methods (echo, discard); a process with
// bespoke business logic embeds the public/agent and public/operator
// packages directly instead of using this generic launcher.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/stdr"

	"github.com/tenzoki/agentwire/internal/codec"
	"github.com/tenzoki/agentwire/internal/config"
	"github.com/tenzoki/agentwire/internal/transport"
	"github.com/tenzoki/agentwire/public/agent"
	"github.com/tenzoki/agentwire/public/operator"
)

func main() {
	configFile := flag.String("config", "", "path to a topology YAML file")
	nsHost := flag.String("ns-host", "", "name server control host (tcp://host:port)")
	flag.Parse()

	if *configFile == "" {
		log.Fatal("agent: -config is required")
	}
	if *nsHost == "" {
		log.Fatal("agent: -ns-host is required")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("agent: %v", err)
	}

	nsAddr, err := transport.Parse(*nsHost)
	if err != nil {
		log.Fatalf("agent: parsing -ns-host: %v", err)
	}

	stdLog := log.New(os.Stdout, "", log.LstdFlags)
	logger := stdr.New(stdLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handles := make([]*operator.Handle, 0, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		a, handle, err := operator.RunAgent(ac.Name, nsAddr, ac.Host, logger)
		if err != nil {
			log.Fatalf("agent: starting %s: %v", ac.Name, err)
		}
		handles = append(handles, handle)

		for _, b := range ac.Binds {
			opts := agent.BindOptions{
				Role:  transport.Role(b.Role),
				Alias: b.Alias,
				Port:  b.Port,
				Codec: codec.Name(b.Codec),
			}
			if b.Handler != "" {
				opts.Handler = agent.HandlerSpec{Kind: agent.HandlerKindBuiltin, Name: b.Handler}
			}
			addr, err := a.Bind(opts)
			if err != nil {
				log.Fatalf("agent: %s binding %s: %v", ac.Name, b.Alias, err)
			}
			stdLog.Printf("%s bound %s at %s", ac.Name, b.Alias, addr.String())
		}

		for _, c := range ac.Connects {
			target, err := transport.Parse(c.Address)
			if err != nil {
				log.Fatalf("agent: %s connecting %s: %v", ac.Name, c.Alias, err)
			}
			target.Role = transport.Role(c.Role)
			opts := agent.ConnectOptions{Address: target, Alias: c.Alias}
			if c.Handler != "" {
				opts.Handler = agent.HandlerSpec{Kind: agent.HandlerKindBuiltin, Name: c.Handler}
			}
			if _, err := a.Connect(opts); err != nil {
				log.Fatalf("agent: %s connecting %s: %v", ac.Name, c.Alias, err)
			}
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		stdLog.Printf("received signal: %s, shutting down", sig)
	case <-ctx.Done():
	}

	for _, h := range handles {
		h.Stop()
	}
	time.Sleep(50 * time.Millisecond)
}
