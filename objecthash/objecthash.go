// Package objecthash derives claim identifiers from JSON objects.
//
// An object is serialised per RFC 8785 (JCS): keys sorted by UTF-16 code
// units, no whitespace, ECMAScript number and string formatting, which is
// what json-stable-stringify produces for plain JSON data. The UTF-8 bytes
// are hashed with keccak256, so two objects that are deeply equal produce the
// same identifier whatever their key order.
package objecthash

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gowebpki/jcs"
)

var (
	ErrNonFinite   = errors.New("non-finite number")
	ErrInvalidText = errors.New("invalid UTF-8 or unpaired surrogate in string")
)

// Canonicalize returns the canonical encoding of v. v may be any value
// accepted by encoding/json.
func Canonicalize(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		var unsupported *json.UnsupportedValueError
		if errors.As(err, &unsupported) {
			return nil, fmt.Errorf("%w: %s", ErrNonFinite, unsupported.Str)
		}
		return nil, err
	}
	if err := checkStrings(reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return CanonicalizeJSON(data)
}

// CanonicalizeJSON validates a single JSON document and returns its
// canonical encoding.
func CanonicalizeJSON(data []byte) ([]byte, error) {
	v, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := checkNumbers(v); err != nil {
		return nil, err
	}
	// jcs only takes an object or an array at the top level
	wrapped := make([]byte, 0, len(data)+2)
	wrapped = append(append(append(wrapped, '['), data...), ']')
	out, err := jcs.Transform(wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize object: %w", err)
	}
	return out[1 : len(out)-1], nil
}

// Sum is keccak256 over an already canonical encoding.
func Sum(canonical []byte) common.Hash {
	return crypto.Keccak256Hash(canonical)
}

// Hash is keccak256 over the canonical encoding of v.
func Hash(v any) (common.Hash, error) {
	bz, err := Canonicalize(v)
	if err != nil {
		return common.Hash{}, err
	}
	return Sum(bz), nil
}

func HashJSON(data []byte) (common.Hash, error) {
	bz, err := CanonicalizeJSON(data)
	if err != nil {
		return common.Hash{}, err
	}
	return Sum(bz), nil
}

// ToField reads the digest as a big-endian unsigned integer. The result is
// what the claim flow passes as Semaphore message and scope.
func ToField(h common.Hash) *big.Int {
	return new(big.Int).SetBytes(h[:])
}

func decode(data []byte) (any, error) {
	if !utf8.Valid(data) {
		return nil, ErrInvalidText
	}
	if err := checkEscapes(data); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to parse object JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("failed to parse object JSON: trailing data after value")
	}
	return v, nil
}

// checkEscapes rejects \u escapes that name half of a surrogate pair on
// their own. encoding/json would silently turn them into U+FFFD.
func checkEscapes(data []byte) error {
	inString := false
	for i := 0; i < len(data); i++ {
		switch c := data[i]; {
		case c == '"':
			inString = !inString
		case c == '\\' && inString && i+1 < len(data):
			if data[i+1] != 'u' {
				i++
				continue
			}
			r, ok := escapedRune(data, i)
			if !ok {
				// malformed; left to the decoder
				i++
				continue
			}
			i += 5
			switch {
			case utf16.IsSurrogate(r) && r < 0xdc00:
				lo, ok := escapedRune(data, i+1)
				if !ok || utf16.DecodeRune(r, lo) == utf8.RuneError {
					return fmt.Errorf("%w: \\u%04x", ErrInvalidText, r)
				}
				i += 6
			case utf16.IsSurrogate(r):
				return fmt.Errorf("%w: \\u%04x", ErrInvalidText, r)
			}
		}
	}
	return nil
}

// escapedRune reads the \uXXXX escape starting at data[i].
func escapedRune(data []byte, i int) (rune, bool) {
	if i+6 > len(data) || data[i] != '\\' || data[i+1] != 'u' {
		return 0, false
	}
	n, err := strconv.ParseUint(string(data[i+2:i+6]), 16, 16)
	if err != nil {
		return 0, false
	}
	return rune(n), true
}

func checkNumbers(v any) error {
	switch x := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(x.String(), 64)
		if math.IsInf(f, 0) {
			return fmt.Errorf("%w: %s", ErrNonFinite, x)
		}
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
	case map[string]any:
		for _, e := range x {
			if err := checkNumbers(e); err != nil {
				return err
			}
		}
	case []any:
		for _, e := range x {
			if err := checkNumbers(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkStrings walks v for strings and map keys that are not valid UTF-8.
// json.Marshal would replace the bad bytes instead of failing.
func checkStrings(v reflect.Value) error {
	switch v.Kind() {
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			return fmt.Errorf("%w: %q", ErrInvalidText, v.String())
		}
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			return checkStrings(v.Elem())
		}
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			// []byte is marshalled as base64
			return nil
		}
		for i := range v.Len() {
			if err := checkStrings(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := checkStrings(iter.Key()); err != nil {
				return err
			}
			if err := checkStrings(iter.Value()); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := range v.NumField() {
			if v.Type().Field(i).IsExported() {
				if err := checkStrings(v.Field(i)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
