package cachemap

import (
	"encoding/gob"
	"errors"
	"io"
	"reflect"
	"strings"

	"github.com/cespare/xxhash/v2"
	perrors "github.com/jmgilman/go/errors"
)

type dumpHeader struct {
	TypesHash uint64
}

type dumpEntry[K comparable, V any] struct {
	Key         K
	Value       V
	Pinned      bool
	Placeholder bool
}

// Dump saves hard-referenced entries and pins, it returns a number of processed entries.
//
// Overflow tier is not saved.
func (c *cache[K, V]) Dump(w io.Writer) (int, error) {
	encoder := gob.NewEncoder(w)

	c.gate.RLock()
	keys := c.keys()
	entries := make([]dumpEntry[K, V], 0, len(keys)+len(c.pinned))

	for _, k := range keys {
		v, _ := c.peek(k)
		entries = append(entries, dumpEntry[K, V]{Key: k, Value: v, Pinned: c.isPinned(k)})
	}

	for k, p := range c.pinned {
		if !p.set {
			entries = append(entries, dumpEntry[K, V]{Key: k, Pinned: true, Placeholder: true})
		}
	}
	c.gate.RUnlock()

	if err := encoder.Encode(dumpHeader{TypesHash: typesHash[K, V]()}); err != nil {
		return 0, err
	}

	n := 0

	for _, e := range entries {
		if err := encoder.Encode(e); err != nil {
			return n, err
		}

		n++
	}

	return n, nil
}

// Restore loads entries saved by Dump and returns number of processed entries.
func (c *cache[K, V]) Restore(r io.Reader) (int, error) {
	decoder := gob.NewDecoder(r)

	h := dumpHeader{}
	if err := decoder.Decode(&h); err != nil {
		return 0, err
	}

	if expected := typesHash[K, V](); h.TypesHash != expected {
		return 0, perrors.WrapWithContext(ErrTypesMismatch, perrors.CodeSchemaVersionIncompatible,
			"failed to restore cache dump", map[string]interface{}{
				"expected": expected,
				"received": h.TypesHash,
			})
	}

	n := 0

	for {
		e := dumpEntry[K, V]{}

		err := decoder.Decode(&e)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return n, err
		}

		c.gate.Lock()
		if !e.Placeholder {
			c.put(e.Key, e.Value)
		}

		if e.Pinned {
			c.pin(e.Key)
		}
		c.gate.Unlock()

		n++
	}

	return n, nil
}

var gobTypesHash uint64

// GobTypesHashReset resets types hash to zero value.
func GobTypesHashReset() {
	gobTypesHash = 0
}

// GobTypesHash returns a fingerprint of a group of types to transfer.
func GobTypesHash() uint64 {
	return gobTypesHash
}

// GobRegister enables transferring of concrete types behind interface values.
func GobRegister(values ...interface{}) {
	for _, value := range values {
		h := xxhash.New()
		t := reflect.TypeOf(value)
		_, _ = h.WriteString(t.PkgPath() + t.String())
		recursiveTypeHash(t, h, map[reflect.Type]bool{})
		gobTypesHash ^= h.Sum64()

		gob.Register(value)
	}
}

// typesHash fingerprints key and value types together with registered types.
func typesHash[K comparable, V any]() uint64 {
	h := xxhash.New()

	for _, t := range []reflect.Type{reflect.TypeFor[K](), reflect.TypeFor[V]()} {
		_, _ = h.WriteString(t.PkgPath() + t.String())
		recursiveTypeHash(t, h, map[reflect.Type]bool{})
	}

	return h.Sum64() ^ gobTypesHash
}

// recursiveTypeHash hashes type recursively to ensure structural match.
func recursiveTypeHash(t reflect.Type, h io.Writer, met map[reflect.Type]bool) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if met[t] {
		return
	}

	met[t] = true

	switch t.Kind() {
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)

			// Skip unexported field.
			if f.Name != "" && (f.Name[0:1] == strings.ToLower(f.Name[0:1])) {
				continue
			}

			if !f.Anonymous {
				_, _ = h.Write([]byte(f.Name))
			}

			recursiveTypeHash(f.Type, h, met)
		}

	case reflect.Slice, reflect.Array:
		recursiveTypeHash(t.Elem(), h, met)
	case reflect.Map:
		recursiveTypeHash(t.Key(), h, met)
		recursiveTypeHash(t.Elem(), h, met)
	default:
		_, _ = h.Write([]byte(t.String()))
	}
}

// nolint:gochecknoinits // Registering types to a package level registry of "encoding/gob".
func init() {
	// Registering commonly used types.
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
}
