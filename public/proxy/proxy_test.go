package proxy_test

import (
	"context"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/go-logr/stdr"
	"github.com/stretchr/testify/require"

	"github.com/tenzoki/agentwire/internal/transport"
	"github.com/tenzoki/agentwire/public/agent"
	"github.com/tenzoki/agentwire/public/proxy"
)

func startAgent(t *testing.T, name string) *agent.Agent {
	t.Helper()
	logger := stdr.New(log.New(io.Discard, "", 0))
	a := agent.New(name, logger)
	require.NoError(t, a.BindControl("127.0.0.1", 0))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() { cancel(); a.Stop() })
	go a.Run(ctx)
	return a
}

func TestProxyGetSet(t *testing.T) {
	a := startAgent(t, "proxied")
	a.Set("greeting", "hi")

	p, err := proxy.Connect(a.ControlAddress(), "proxied")
	require.NoError(t, err)
	defer p.Close()

	v, err := p.Get("greeting")
	require.NoError(t, err)
	require.Equal(t, "hi", v)

	require.NoError(t, p.Set("greeting", "hello"))
	v2, ok := a.Get("greeting")
	require.True(t, ok)
	require.Equal(t, "hello", v2)
}

func TestProxyCall(t *testing.T) {
	a := startAgent(t, "callable")
	a.HandleFunc("add", func(ag *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
		args, _ := msg.(map[string]interface{})
		var x int64
		switch v := args["x"].(type) {
		case int64:
			x = v
		case int8:
			x = int64(v)
		case float64:
			x = int64(v)
		}
		return x + 1, nil
	})

	p, err := proxy.Connect(a.ControlAddress(), "callable")
	require.NoError(t, err)
	defer p.Close()

	v, err := p.Call("add", map[string]interface{}{"x": 41})
	require.NoError(t, err)
	require.EqualValues(t, 42, v)
}

func TestProxyBindRemote(t *testing.T) {
	a := startAgent(t, "binder")
	p, err := proxy.Connect(a.ControlAddress(), "binder")
	require.NoError(t, err)
	defer p.Close()

	addr, err := p.Bind(proxy.BindOptions{Role: transport.PUSH, Alias: "out"})
	require.NoError(t, err)
	require.Equal(t, transport.TCP, addr.Transport)
	require.NotZero(t, addr.Port)

	require.NoError(t, p.CloseRemote("out"))
}

func TestProxyShutdown(t *testing.T) {
	logger := stdr.New(log.New(io.Discard, "", 0))
	a := agent.New("shutdownable", logger)
	require.NoError(t, a.BindControl("127.0.0.1", 0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	p, err := proxy.Connect(a.ControlAddress(), "shutdownable")
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Shutdown())

	endpoint := a.ControlAddress().Endpoint()
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", endpoint, 50*time.Millisecond)
		if err != nil {
			return true
		}
		conn.Close()
		return false
	}, 2*time.Second, 20*time.Millisecond)
}
