// Package json wraps sonic with an encoding/json fallback.
// sonic is used on amd64 and arm64; other architectures use the standard library.
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

// RawMessage is a raw encoded JSON value.
type RawMessage = stdjson.RawMessage

// Encoder is a JSON encoder.
type Encoder interface {
	Encode(v any) error
}

// Decoder is a JSON decoder.
type Decoder interface {
	Decode(v any) error
}

var (
	// Marshal encodes v into JSON bytes.
	Marshal func(v any) ([]byte, error)
	// Unmarshal decodes JSON bytes into v.
	Unmarshal func(data []byte, v any) error
	// NewEncoder returns an encoder writing to w.
	NewEncoder func(w io.Writer) Encoder
	// NewDecoder returns a decoder reading from r.
	NewDecoder func(r io.Reader) Decoder

	usingSonic bool
)

func init() {
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		api := sonic.ConfigStd
		Marshal = api.Marshal
		Unmarshal = api.Unmarshal
		NewEncoder = func(w io.Writer) Encoder { return api.NewEncoder(w) }
		NewDecoder = func(r io.Reader) Decoder { return api.NewDecoder(r) }
		usingSonic = true
		return
	}

	Marshal = stdjson.Marshal
	Unmarshal = stdjson.Unmarshal
	NewEncoder = func(w io.Writer) Encoder { return stdjson.NewEncoder(w) }
	NewDecoder = func(r io.Reader) Decoder { return stdjson.NewDecoder(r) }
}

// MarshalString encodes v and returns the JSON as a string.
func MarshalString(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IsUsingSonic reports whether sonic backs the package functions.
func IsUsingSonic() bool {
	return usingSonic
}
