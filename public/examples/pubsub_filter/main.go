// Command pubsub_filter demonstrates topic-prefix dispatch: Alice
// publishes on topics "a" and "b"; Bob subscribes to both, Eve only to
// "a", Dave only to "b" (adapted from osbrain's
// examples/pub_sub_filter/main.py).
package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/go-logr/stdr"

	"github.com/tenzoki/agentwire/internal/transport"
	"github.com/tenzoki/agentwire/public/agent"
	"github.com/tenzoki/agentwire/public/operator"
)

func logA(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
	log.Printf("%s log a: %v", a.Name(), msg)
	return nil, nil
}

func logB(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
	log.Printf("%s log b: %v", a.Name(), msg)
	return nil, nil
}

func main() {
	logger := stdr.New(log.New(os.Stdout, "", log.LstdFlags))

	_, nsHandle, err := operator.RunNameserver("127.0.0.1", 0, logger)
	if err != nil {
		log.Fatalf("nameserver: %v", err)
	}
	defer nsHandle.Stop()
	nsAddr := nsHandle.Agent.ControlAddress()

	alice, aliceHandle, err := operator.RunAgent("Alice", nsAddr, "127.0.0.1", logger)
	if err != nil {
		log.Fatalf("Alice: %v", err)
	}
	defer aliceHandle.Stop()

	bob, bobHandle, err := operator.RunAgent("Bob", nsAddr, "127.0.0.1", logger)
	if err != nil {
		log.Fatalf("Bob: %v", err)
	}
	defer bobHandle.Stop()
	bob.HandleFunc("log_a", logA)
	bob.HandleFunc("log_b", logB)

	eve, eveHandle, err := operator.RunAgent("Eve", nsAddr, "127.0.0.1", logger)
	if err != nil {
		log.Fatalf("Eve: %v", err)
	}
	defer eveHandle.Stop()
	eve.HandleFunc("log_a", logA)

	dave, daveHandle, err := operator.RunAgent("Dave", nsAddr, "127.0.0.1", logger)
	if err != nil {
		log.Fatalf("Dave: %v", err)
	}
	defer daveHandle.Stop()
	dave.HandleFunc("log_b", logB)

	addr, err := alice.Bind(agent.BindOptions{Role: transport.PUB, Alias: "main"})
	if err != nil {
		log.Fatalf("binding Alice's main socket: %v", err)
	}

	mustConnect := func(a *agent.Agent, handlers agent.TopicHandlerSpec) {
		if _, err := a.Connect(agent.ConnectOptions{Address: addr, Handlers: handlers}); err != nil {
			log.Fatalf("%s connecting to Alice: %v", a.Name(), err)
		}
	}
	mustConnect(bob, agent.TopicHandlerSpec{
		"a": {Kind: agent.HandlerKindMethod, Name: "log_a"},
		"b": {Kind: agent.HandlerKindMethod, Name: "log_b"},
	})
	mustConnect(eve, agent.TopicHandlerSpec{
		"a": {Kind: agent.HandlerKindMethod, Name: "log_a"},
	})
	mustConnect(dave, agent.TopicHandlerSpec{
		"b": {Kind: agent.HandlerKindMethod, Name: "log_b"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	topics := []string{"a", "b"}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			topic := topics[rand.Intn(len(topics))]
			if err := alice.Publish("main", topic, "Hello, "+topic+"!"); err != nil {
				log.Printf("publish: %v", err)
			}
		}
	}
}
