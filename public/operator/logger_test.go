package operator_test

import (
	"io"
	"log"
	"reflect"
	"testing"
	"time"

	"github.com/go-logr/stdr"
	"github.com/stretchr/testify/require"

	"github.com/tenzoki/agentwire/internal/testsupport"
	"github.com/tenzoki/agentwire/internal/transport"
	"github.com/tenzoki/agentwire/public/agent"
	"github.com/tenzoki/agentwire/public/operator"
)

func TestLoggerReceivesWarning(t *testing.T) {
	logger := stdr.New(log.New(io.Discard, "", 0))

	ns, nsHandle, err := operator.RunNameserver("127.0.0.1", 0, logger)
	require.NoError(t, err)
	t.Cleanup(nsHandle.Stop)

	loggerAgent, subAddr, loggerHandle, err := operator.RunLogger("Logger", ns.Address(), "127.0.0.1", logger)
	require.NoError(t, err)
	t.Cleanup(loggerHandle.Stop)

	worker, workerHandle, err := operator.RunAgent("Worker", ns.Address(), "127.0.0.1", logger)
	require.NoError(t, err)
	t.Cleanup(workerHandle.Stop)

	require.NoError(t, operator.SetLogger(worker, subAddr))
	require.NoError(t, operator.LogWarning(worker, "not receive req for x1"))

	err = testsupport.WaitFor(testsupport.DefaultTimeout, "logger to receive the warning", func() bool {
		v, ok := loggerAgent.Get("log_history_warning")
		return ok && reflect.ValueOf(v).Len() > 0
	})
	require.NoError(t, err)

	require.NoError(t, operator.LogInfo(worker, "just fyi"))
	err = testsupport.WaitFor(testsupport.DefaultTimeout, "logger to receive the info record", func() bool {
		v, ok := loggerAgent.Get("log_history_info")
		return ok && reflect.ValueOf(v).Len() > 0
	})
	require.NoError(t, err)
}

// TestLoggerObservesInternalSyncTimeout exercises the runtime's own
// warning channel, not an explicit operator.LogWarning call: a SYNC_SUB
// request that times out logs "did not receive req reply" from inside
// checkSyncDeadlines, and SetLogger must make that warning observable to
// the logger agent without the test reaching into the worker's process.
func TestLoggerObservesInternalSyncTimeout(t *testing.T) {
	logger := stdr.New(log.New(io.Discard, "", 0))

	ns, nsHandle, err := operator.RunNameserver("127.0.0.1", 0, logger)
	require.NoError(t, err)
	t.Cleanup(nsHandle.Stop)

	loggerAgent, subAddr, loggerHandle, err := operator.RunLogger("Logger2", ns.Address(), "127.0.0.1", logger)
	require.NoError(t, err)
	t.Cleanup(loggerHandle.Stop)

	server, serverHandle, err := operator.RunAgent("SyncServer", ns.Address(), "127.0.0.1", logger)
	require.NoError(t, err)
	t.Cleanup(serverHandle.Stop)

	client, clientHandle, err := operator.RunAgent("SyncClient", ns.Address(), "127.0.0.1", logger)
	require.NoError(t, err)
	t.Cleanup(clientHandle.Stop)

	require.NoError(t, operator.SetLogger(client, subAddr))

	server.HandleFunc("slow", func(a *agent.Agent, msg agent.Message, topic string) (interface{}, error) {
		time.Sleep(200 * time.Millisecond)
		return "too-late", nil
	})
	pubAddr, err := server.Bind(agent.BindOptions{
		Role:    transport.SyncPub,
		Alias:   "syncmain",
		Handler: agent.HandlerSpec{Kind: agent.HandlerKindMethod, Name: "slow"},
	})
	require.NoError(t, err)
	auxAddr, err := server.AuxAddress("syncmain")
	require.NoError(t, err)

	_, err = client.ConnectSync(pubAddr, auxAddr, "syncsub", nil)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.Send("syncsub", "ping", agent.SendOptions{
		Wait:    30 * time.Millisecond,
		HasWait: true,
	}))

	err = testsupport.WaitFor(testsupport.DefaultTimeout, "logger to observe the sync timeout warning", func() bool {
		v, ok := loggerAgent.Get("log_history_warning")
		if !ok {
			return false
		}
		records := v.([]agent.LogRecord)
		for _, r := range records {
			if r.Agent == "SyncClient" {
				return true
			}
		}
		return false
	})
	require.NoError(t, err)
}
