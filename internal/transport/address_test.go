package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTwinIsInvolution(t *testing.T) {
	roles := []Role{PUB, SUB, REQ, REP, PUSH, PULL, SyncPub, SyncSub, AsyncReq, AsyncRep}
	for _, r := range roles {
		a := Address{Host: "localhost", Port: 5555, Transport: TCP, Role: r}
		require.Equal(t, r, a.Twin().Twin().Role, "twin().twin() must return the original role for %s", r)
	}
}

func TestTwinComplements(t *testing.T) {
	cases := map[Role]Role{
		PUB: SUB, REQ: REP, PUSH: PULL, SyncPub: SyncSub, AsyncReq: AsyncRep,
	}
	for a, b := range cases {
		addr := Address{Host: "h", Port: 1, Transport: TCP, Role: a}
		require.Equal(t, b, addr.Twin().Role)
	}
}

func TestParseTCP(t *testing.T) {
	a, err := Parse("tcp://localhost:5555")
	require.NoError(t, err)
	require.Equal(t, "localhost", a.Host)
	require.Equal(t, 5555, a.Port)
	require.Equal(t, TCP, a.Transport)
}

func TestParseIPC(t *testing.T) {
	a, err := Parse("ipc:///tmp/agent.sock")
	require.NoError(t, err)
	require.Equal(t, "/tmp/agent.sock", a.Host)
	require.Equal(t, IPC, a.Transport)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse("bogus://x")
	require.Error(t, err)
}

func TestAddressStringRoundTrips(t *testing.T) {
	a := Address{Host: "localhost", Port: 5555, Transport: TCP}
	parsed, err := Parse(a.String())
	require.NoError(t, err)
	require.Equal(t, a.Host, parsed.Host)
	require.Equal(t, a.Port, parsed.Port)
}
