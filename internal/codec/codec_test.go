package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPickleRoundTrip(t *testing.T) {
	c, err := Lookup(Pickle)
	require.NoError(t, err)

	data, err := c.Encode(map[string]interface{}{"n": 42, "s": "hi"})
	require.NoError(t, err)

	var out interface{}
	require.NoError(t, c.Decode(data, &out))
	m, ok := out.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "hi", m["s"])
}

func TestJSONRoundTrip(t *testing.T) {
	c, err := Lookup(JSON)
	require.NoError(t, err)

	data, err := c.Encode([]int{1, 2, 3})
	require.NoError(t, err)

	var out []int
	require.NoError(t, c.Decode(data, &out))
	require.Equal(t, []int{1, 2, 3}, out)
}

func TestRawPassthrough(t *testing.T) {
	c, err := Lookup(Raw)
	require.NoError(t, err)

	data, err := c.Encode([]byte("payload"))
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)

	var out interface{}
	require.NoError(t, c.Decode(data, &out))
	require.Equal(t, []byte("payload"), out)
}

func TestRawRejectsNonBytes(t *testing.T) {
	c, err := Lookup(Raw)
	require.NoError(t, err)
	_, err = c.Encode("not bytes")
	require.Error(t, err)
}

func TestUnformattedForbidsTopic(t *testing.T) {
	c, err := Lookup(Unformatted)
	require.NoError(t, err)
	require.False(t, c.AllowsTopic())
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("bogus")
	require.Error(t, err)
}
