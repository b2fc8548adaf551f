package agent_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tenzoki/agentwire/internal/transport"
	"github.com/tenzoki/agentwire/public/agent"
)

func TestSyncPubSubRoundTrip(t *testing.T) {
	server := newAgent(t, "sync-server")
	client := newAgent(t, "sync-client")
	runAgent(t, server)
	runAgent(t, client)

	server.HandleFunc("reply", func(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
		return "echo:" + msg.(string), nil
	})

	pubAddr, err := server.Bind(agent.BindOptions{
		Role:    transport.SyncPub,
		Alias:   "syncmain",
		Handler: agent.HandlerSpec{Kind: agent.HandlerKindMethod, Name: "reply"},
	})
	require.NoError(t, err)

	auxAddr, err := server.AuxAddress("syncmain")
	require.NoError(t, err)

	var got atomic.Value
	client.HandleFunc("onReply", func(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
		got.Store(msg.(string))
		return nil, nil
	})

	_, err = client.ConnectSync(pubAddr, auxAddr, "syncsub", nil)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.Send("syncsub", "ping", agent.SendOptions{
		Handler: agent.HandlerSpec{Kind: agent.HandlerKindMethod, Name: "onReply"},
	}))

	require.Eventually(t, func() bool { return got.Load() != nil }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "echo:ping", got.Load())
}

func TestSyncPubSubDeadlineFiresOnError(t *testing.T) {
	// The server's handler replies slower than the client's deadline, so
	// on_error must fire before the (later, now-stale) reply arrives; the
	// stale reply is then dropped silently.
	server := newAgent(t, "sync-server-2")
	client := newAgent(t, "sync-client-2")
	runAgent(t, server)
	runAgent(t, client)

	server.HandleFunc("slow", func(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
		time.Sleep(200 * time.Millisecond)
		return "too-late", nil
	})

	pubAddr, err := server.Bind(agent.BindOptions{
		Role:    transport.SyncPub,
		Alias:   "syncmain2",
		Handler: agent.HandlerSpec{Kind: agent.HandlerKindMethod, Name: "slow"},
	})
	require.NoError(t, err)
	auxAddr, err := server.AuxAddress("syncmain2")
	require.NoError(t, err)

	var errored atomic.Bool
	client.HandleError("onTimeout", func(a *agent.Agent) { errored.Store(true) })

	_, err = client.ConnectSync(pubAddr, auxAddr, "syncsub2", nil)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.Send("syncsub2", "ping", agent.SendOptions{
		Wait:    30 * time.Millisecond,
		HasWait: true,
		OnError: agent.HandlerSpec{Name: "onTimeout"},
	}))

	require.Eventually(t, func() bool { return errored.Load() }, 2*time.Second, 10*time.Millisecond)
}

