package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{Topic: []byte("positive"), Payload: []byte("hello")}

	require.NoError(t, WriteFrame(&buf, f, false))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, f.Topic, got.Topic)
	require.Equal(t, f.Payload, got.Payload)
}

func TestWriteReadFrameCompressed(t *testing.T) {
	var buf bytes.Buffer
	payload := bytes.Repeat([]byte("x"), 4096)
	f := Frame{Topic: []byte("a"), Payload: payload}

	require.NoError(t, WriteFrame(&buf, f, true))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, f.Topic, got.Topic)
	require.Equal(t, f.Payload, got.Payload)
}

func TestWriteReadFrameEmptyTopic(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{Payload: []byte("no topic")}

	require.NoError(t, WriteFrame(&buf, f, false))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Empty(t, got.Topic)
	require.Equal(t, f.Payload, got.Payload)
}

func TestReadFrameTruncated(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0}))
	require.Error(t, err)
}

func TestMultipleFramesInOrder(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 5; i++ {
		require.NoError(t, WriteFrame(&buf, Frame{Payload: []byte{byte(i)}}, false))
	}
	for i := 0; i < 5; i++ {
		f, err := ReadFrame(&buf)
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i)}, f.Payload)
	}
}
