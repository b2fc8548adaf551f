package agent_test

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/stdr"
	"github.com/stretchr/testify/require"

	"github.com/tenzoki/agentwire/internal/codec"
	"github.com/tenzoki/agentwire/internal/transport"
	"github.com/tenzoki/agentwire/public/agent"
)

func newAgent(t *testing.T, name string) *agent.Agent {
	t.Helper()
	a := agent.New(name, stdr.New(log.New(io.Discard, "", 0)))
	return a
}

func runAgent(t *testing.T, a *agent.Agent) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		a.Stop()
	})
	go a.Run(ctx)
}

func TestPubSubTopicDispatch(t *testing.T) {
	pub := newAgent(t, "pub")
	sub := newAgent(t, "sub")
	runAgent(t, pub)
	runAgent(t, sub)

	var mu sync.Mutex
	received := make([]string, 0)
	sub.HandleFunc("onA", func(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, msg.(string))
		return nil, nil
	})

	addr, err := pub.Bind(agent.BindOptions{Role: transport.PUB, Alias: "main"})
	require.NoError(t, err)

	_, err = sub.Connect(agent.ConnectOptions{
		Address: addr,
		Handlers: agent.TopicHandlerSpec{
			"a": {Kind: agent.HandlerKindMethod, Name: "onA"},
		},
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond) // let the connection register
	require.NoError(t, pub.Publish("main", "a", "hello-a"))
	require.NoError(t, pub.Publish("main", "b", "hello-b")) // no handler: dropped

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Equal(t, []string{"hello-a"}, received)
	mu.Unlock()
}

func TestReqRepRoundTrip(t *testing.T) {
	server := newAgent(t, "server")
	client := newAgent(t, "client")
	runAgent(t, server)
	runAgent(t, client)

	server.HandleFunc("shout", func(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
		return msg.(string) + "!", nil
	})

	addr, err := server.Bind(agent.BindOptions{
		Role:    transport.REP,
		Alias:   "rep",
		Handler: agent.HandlerSpec{Kind: agent.HandlerKindMethod, Name: "shout"},
	})
	require.NoError(t, err)

	var reply atomic.Value
	var got atomic.Bool
	client.HandleFunc("onReply", func(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
		reply.Store(msg.(string))
		got.Store(true)
		return nil, nil
	})

	_, err = client.Connect(agent.ConnectOptions{
		Address: addr,
		Alias:   "req",
		Handler: agent.HandlerSpec{Kind: agent.HandlerKindMethod, Name: "onReply"},
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.Publish("req", "", "hello"))

	require.Eventually(t, func() bool { return got.Load() }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "hello!", reply.Load())
}

func TestEachTimerFiresRepeatedly(t *testing.T) {
	a := newAgent(t, "ticker")
	runAgent(t, a)

	var count atomic.Int32
	a.HandleFunc("tick", func(ag *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
		count.Add(1)
		return nil, nil
	})

	require.NoError(t, a.Each(20*time.Millisecond, agent.HandlerSpec{Kind: agent.HandlerKindMethod, Name: "tick"}, "tick-timer"))

	require.Eventually(t, func() bool { return count.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, a.StopTimer("tick-timer"))
}

func TestAfterTimerFiresOnce(t *testing.T) {
	a := newAgent(t, "once")
	runAgent(t, a)

	var count atomic.Int32
	a.HandleFunc("once", func(ag *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
		count.Add(1)
		return nil, nil
	})

	require.NoError(t, a.After(20*time.Millisecond, agent.HandlerSpec{Kind: agent.HandlerKindMethod, Name: "once"}, "once-timer"))

	require.Eventually(t, func() bool { return count.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	require.EqualValues(t, 1, count.Load())
}

func TestBindAliasCollision(t *testing.T) {
	a := newAgent(t, "collider")
	runAgent(t, a)

	_, err := a.Bind(agent.BindOptions{Role: transport.PUSH, Alias: "dup"})
	require.NoError(t, err)

	_, err = a.Bind(agent.BindOptions{Role: transport.PUSH, Alias: "dup"})
	require.ErrorAs(t, err, &agent.ErrAliasInUse{})
}

func TestBindReplySocketRequiresHandler(t *testing.T) {
	a := newAgent(t, "strict")
	runAgent(t, a)

	_, err := a.Bind(agent.BindOptions{Role: transport.REP, Alias: "rep"})
	require.ErrorAs(t, err, &agent.ErrHandlerRequired{})
}

func TestAttributes(t *testing.T) {
	a := newAgent(t, "attrs")
	a.Set("count", 7)
	v, ok := a.Get("count")
	require.True(t, ok)
	require.Equal(t, 7, v)

	_, ok = a.Get("missing")
	require.False(t, ok)
}

func TestPublishRejectsTopicOnUnformattedCodec(t *testing.T) {
	a := newAgent(t, "unformatted-pub")
	runAgent(t, a)

	_, err := a.Bind(agent.BindOptions{Role: transport.PUB, Alias: "raw", Codec: codec.Unformatted})
	require.NoError(t, err)

	require.Error(t, a.Publish("raw", "some-topic", []byte("payload")))
	require.NoError(t, a.Publish("raw", "", []byte("payload")))
}
