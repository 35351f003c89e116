package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Serializer turns a literal response value into bytes.
type Serializer interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
}

// JSON serializes with encoding/json. Output is exactly json.Marshal(v).
type JSON struct{}

func (JSON) ContentType() string { return "application/json" }

func (JSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Msgpack serializes with msgpack, map keys sorted.
type Msgpack struct{}

func (Msgpack) ContentType() string { return "application/msgpack" }

func (Msgpack) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ByName returns the serializer registered under name ("json" or "msgpack").
func ByName(name string) (Serializer, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "msgpack":
		return Msgpack{}, nil
	default:
		return nil, fmt.Errorf("encoding: unknown serializer %q", name)
	}
}
