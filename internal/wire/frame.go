// Package wire implements the on-the-wire framing shared by every
// transport connection: a length-prefixed frame carrying an optional topic
// prefix (for publish patterns) ahead of the codec-encoded payload, with an
// optional stream-compression flag.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
)

// Flags bits set in a frame header.
const (
	FlagCompressed byte = 1 << 0
)

// maxFrameSize bounds a single frame to guard against a corrupt length
// prefix turning into an unbounded allocation.
const maxFrameSize = 64 << 20 // 64 MiB

// Frame is one unit on the wire: an opaque topic prefix (possibly empty)
// followed by a codec-encoded payload. The topic is matched against a
// subscriber's filter set before the payload is decoded.
type Frame struct {
	Topic   []byte
	Payload []byte
}

// WriteFrame writes a frame as:
//
//	[4 bytes total length][1 byte flags][2 bytes topic length][topic][payload]
//
// When compress is true everything after the flags byte (topic length,
// topic and payload) is s2-compressed and FlagCompressed is set; the
// receiver decompresses before splitting topic from payload.
func WriteFrame(w io.Writer, f Frame, compress bool) error {
	if len(f.Topic) > 0xFFFF {
		return fmt.Errorf("wire: topic too long (%d bytes)", len(f.Topic))
	}

	body := make([]byte, 2+len(f.Topic)+len(f.Payload))
	binary.BigEndian.PutUint16(body[0:2], uint16(len(f.Topic)))
	copy(body[2:], f.Topic)
	copy(body[2+len(f.Topic):], f.Payload)

	var flags byte
	if compress {
		body = s2.Encode(nil, body)
		flags |= FlagCompressed
	}

	if len(body)+1 > maxFrameSize {
		return fmt.Errorf("wire: frame too large (%d bytes)", len(body)+1)
	}

	header := make([]byte, 5)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(body)+1))
	header[4] = flags

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("wire: write body: %w", err)
	}
	return nil
}

// ReadFrame reads one frame written by WriteFrame.
func ReadFrame(r io.Reader) (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, err
	}
	total := binary.BigEndian.Uint32(lenBuf[:])
	if total == 0 || int(total) > maxFrameSize {
		return Frame{}, fmt.Errorf("wire: invalid frame length %d", total)
	}

	buf := make([]byte, total)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Frame{}, fmt.Errorf("wire: read body: %w", err)
	}

	flags := buf[0]
	body := buf[1:]
	if flags&FlagCompressed != 0 {
		decoded, err := s2.Decode(nil, body)
		if err != nil {
			return Frame{}, fmt.Errorf("wire: decompress: %w", err)
		}
		body = decoded
	}

	if len(body) < 2 {
		return Frame{}, fmt.Errorf("wire: truncated frame")
	}
	topicLen := binary.BigEndian.Uint16(body[0:2])
	rest := body[2:]
	if int(topicLen) > len(rest) {
		return Frame{}, fmt.Errorf("wire: truncated topic")
	}

	topic := append([]byte(nil), rest[:topicLen]...)
	payload := append([]byte(nil), rest[topicLen:]...)
	return Frame{Topic: topic, Payload: payload}, nil
}
