// Package encoding produces canonical fingerprints of widget fetch inputs and
// serializes literal response values.
package encoding

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnfingerprintable is returned when a value cannot be encoded canonically
// (functions, channels and similar).
var ErrUnfingerprintable = errors.New("encoding: value cannot be fingerprinted")

// Fingerprinter is implemented by values that know their own canonical form.
// The returned value is encoded in place of the receiver.
type Fingerprinter interface {
	HXFingerprint() any
}

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Fingerprint returns a stable hex digest of v.
//
// v is encoded as msgpack with map keys sorted, so two maps with equal
// contents produce the same fingerprint regardless of iteration order.
func Fingerprint(v any) (string, error) {
	if f, ok := v.(Fingerprinter); ok {
		v = f.HXFingerprint()
	}

	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	enc := msgpack.NewEncoder(buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnfingerprintable, err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:16]), nil
}
