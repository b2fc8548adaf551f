// Package codec implements the per-socket payload encodings named in the
// address codec identifier: pickle, json, raw, unformatted.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Name identifies a codec the way an Address carries it.
type Name string

const (
	// Pickle is the default inter-agent codec: a self-describing binary
	// encoding, playing the same role osbrain's pickle codec plays.
	Pickle Name = "pickle"
	// JSON is a textual, human-inspectable codec.
	JSON Name = "json"
	// Raw passes byte slices through unchanged.
	Raw Name = "raw"
	// Unformatted behaves like Raw but forbids topic framing.
	Unformatted Name = "unformatted"
)

// Codec encodes and decodes socket payloads.
type Codec interface {
	Name() Name
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
	// AllowsTopic reports whether this codec may be combined with a
	// non-empty publish topic. Unformatted returns false; the agent's
	// Publish (and the send path under it) enforce this by rejecting a
	// non-empty topic on such a socket.
	AllowsTopic() bool
}

// Lookup resolves a codec by its wire identifier.
func Lookup(name Name) (Codec, error) {
	switch name {
	case Pickle, "":
		return pickleCodec{}, nil
	case JSON:
		return jsonCodec{}, nil
	case Raw:
		return rawCodec{}, nil
	case Unformatted:
		return unformattedCodec{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown identifier %q", name)
	}
}

type pickleCodec struct{}

func (pickleCodec) Name() Name { return Pickle }
func (pickleCodec) AllowsTopic() bool { return true }
func (pickleCodec) Encode(v interface{}) ([]byte, error) { return msgpack.Marshal(v) }
func (pickleCodec) Decode(data []byte, v interface{}) error { return msgpack.Unmarshal(data, v) }

type jsonCodec struct{}

func (jsonCodec) Name() Name { return JSON }
func (jsonCodec) AllowsTopic() bool { return true }
func (jsonCodec) Encode(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Decode(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// rawCodec requires v to already be []byte (or *[]byte on decode); it
// performs no transformation, matching the "pass bytes through" contract.
type rawCodec struct{}

func (rawCodec) Name() Name { return Raw }
func (rawCodec) AllowsTopic() bool { return true }

func (rawCodec) Encode(v interface{}) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("raw codec: value must be []byte, got %T", v)
	}
	return b, nil
}

func (rawCodec) Decode(data []byte, v interface{}) error {
	switch ptr := v.(type) {
	case *[]byte:
		*ptr = data
	case *interface{}:
		*ptr = data
	default:
		return fmt.Errorf("raw codec: destination must be *[]byte or *interface{}, got %T", v)
	}
	return nil
}

type unformattedCodec struct{ rawCodec }

func (unformattedCodec) Name() Name { return Unformatted }
func (unformattedCodec) AllowsTopic() bool { return false }
