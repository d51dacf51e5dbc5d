package kya

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Canonicalize returns the canonical JSON form of value.
//
// Object keys are sorted by Unicode code point (UTF-8 byte order) at every
// nesting level, array order is preserved, and no whitespace is emitted.
// Strings carry non-ASCII characters verbatim; only '"', '\\' and control
// characters are escaped. The output is byte-identical to the JavaScript and
// Python SDKs for every value they can represent.
//
// value may be nil, bool, string, any integer or float kind, json.Number,
// json.RawMessage, map[string]any or []any. Other values (structs, typed maps
// and slices) are converted through encoding/json first.
func Canonicalize(value any) (string, error) {
	var b strings.Builder
	if err := writeCanonical(&b, value); err != nil {
		return "", err
	}
	return b.String(), nil
}

// CanonicalizeJSON parses JSON text and returns its canonical form.
// Number literals are kept as written until formatting, so large integers
// survive the round trip exactly.
func CanonicalizeJSON(raw []byte) (string, error) {
	v, err := DecodeJSON(raw)
	if err != nil {
		return "", err
	}
	return Canonicalize(v)
}

// DecodeJSON parses a single JSON value, decoding numbers as json.Number.
// Input that is not valid UTF-8 and trailing data after the value are
// rejected.
func DecodeJSON(raw []byte) (any, error) {
	// encoding/json would replace invalid UTF-8 with U+FFFD.
	if err := checkUTF8Bytes(raw); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, wrapError(KindCanonical, "KYA-CANON-001", "invalid JSON", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, newError(KindCanonical, "KYA-CANON-002", "trailing data after JSON value")
	}
	return v, nil
}

func writeCanonical(b *strings.Builder, value any) error {
	switch v := value.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if v {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		return writeString(b, v)
	case json.Number:
		return writeNumber(b, v)
	case float64:
		return writeFloat(b, v, 64)
	case float32:
		return writeFloat(b, float64(v), 32)
	case int:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case int8:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case int16:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case int32:
		b.WriteString(strconv.FormatInt(int64(v), 10))
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case uint:
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint8:
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint16:
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint32:
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint64:
		b.WriteString(strconv.FormatUint(v, 10))
	case map[string]any:
		return writeObject(b, v)
	case []any:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case json.RawMessage:
		decoded, err := DecodeJSON(v)
		if err != nil {
			return err
		}
		return writeCanonical(b, decoded)
	default:
		if err := checkTypedUTF8(reflect.ValueOf(v), 0); err != nil {
			return err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return wrapError(KindCanonical, "KYA-CANON-010", "value is not JSON-compatible", err)
		}
		decoded, err := DecodeJSON(raw)
		if err != nil {
			return err
		}
		return writeCanonical(b, decoded)
	}
	return nil
}

func writeObject(b *strings.Builder, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Byte order of UTF-8 equals code point order.
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeString(b, k); err != nil {
			return err
		}
		b.WriteByte(':')
		if err := writeCanonical(b, m[k]); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}

const hexDigits = "0123456789abcdef"

func writeString(b *strings.Builder, s string) error {
	if err := checkUTF8String(s); err != nil {
		return err
	}
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigits[c>>4])
				b.WriteByte(hexDigits[c&0xf])
				continue
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return nil
}

// writeNumber emits integer literals exactly (any magnitude) and formats
// everything else through float64.
func writeNumber(b *strings.Builder, n json.Number) error {
	s := string(n)
	if isIntegerLiteral(s) {
		if s == "-0" {
			s = "0"
		}
		b.WriteString(s)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return wrapError(KindCanonical, "KYA-CANON-004", "invalid number literal "+strconv.Quote(s), err)
	}
	return writeFloat(b, f, 64)
}

func isIntegerLiteral(s string) bool {
	digits := strings.TrimPrefix(s, "-")
	if digits == "" {
		return false
	}
	if len(digits) > 1 && digits[0] == '0' {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

// writeFloat formats f the way ECMAScript Number.prototype.toString does:
// shortest round-trip digits, plain notation for exponents in [-7, 21),
// exponent notation with an explicit sign otherwise.
func writeFloat(b *strings.Builder, f float64, bitSize int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return newError(KindCanonical, "KYA-CANON-005", "NaN and Infinity are not representable in JSON")
	}
	if f == 0 {
		b.WriteByte('0')
		return nil
	}
	if f < 0 {
		b.WriteByte('-')
		f = -f
	}

	// d.ddddde±XX
	sci := strconv.FormatFloat(f, 'e', -1, bitSize)
	mantissa, expPart, _ := strings.Cut(sci, "e")
	digits := strings.Replace(mantissa, ".", "", 1)
	exp, err := strconv.Atoi(expPart)
	if err != nil {
		return wrapError(KindInternal, "KYA-CANON-900", "unexpected float formatting", err)
	}
	k := len(digits)
	n := exp + 1

	switch {
	case k <= n && n <= 21:
		b.WriteString(digits)
		b.WriteString(strings.Repeat("0", n-k))
	case 0 < n && n <= 21:
		b.WriteString(digits[:n])
		b.WriteByte('.')
		b.WriteString(digits[n:])
	case -6 < n && n <= 0:
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -n))
		b.WriteString(digits)
	default:
		b.WriteByte(digits[0])
		if k > 1 {
			b.WriteByte('.')
			b.WriteString(digits[1:])
		}
		b.WriteByte('e')
		if n-1 >= 0 {
			b.WriteByte('+')
		}
		b.WriteString(strconv.Itoa(n - 1))
	}
	return nil
}
