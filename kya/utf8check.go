package kya

import (
	"encoding"
	"encoding/json"
	"reflect"
	"strings"
	"unicode/utf8"
)

// maxValueDepth bounds the walk over typed values; encoding/json rejects
// deeper (cyclic) values on its own.
const maxValueDepth = 1000

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// checkTypedUTF8 rejects a typed value holding a string or map key that is
// not valid UTF-8. encoding/json would otherwise replace the bad bytes with
// U+FFFD and the signature would cover a different value.
func checkTypedUTF8(v reflect.Value, depth int) error {
	if !v.IsValid() {
		return nil
	}
	if depth > maxValueDepth {
		return newError(KindCanonical, "KYA-CANON-010", "value is nested too deeply")
	}
	t := v.Type()
	// Marshaler output is checked after marshalling.
	if t.Implements(jsonMarshalerType) || (v.CanAddr() && reflect.PointerTo(t).Implements(jsonMarshalerType)) {
		return nil
	}
	if t.Implements(textMarshalerType) {
		if (t.Kind() == reflect.Pointer && v.IsNil()) || !v.CanInterface() {
			return nil
		}
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return wrapError(KindCanonical, "KYA-CANON-010", "value is not JSON-compatible", err)
		}
		return checkUTF8Bytes(text)
	}

	switch v.Kind() {
	case reflect.String:
		return checkUTF8String(v.String())
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkTypedUTF8(v.Elem(), depth+1)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			// []byte is emitted as base64.
			return nil
		}
		fallthrough
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := checkTypedUTF8(v.Index(i), depth+1); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := checkTypedUTF8(iter.Key(), depth+1); err != nil {
				return err
			}
			if err := checkTypedUTF8(iter.Value(), depth+1); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() && !f.Anonymous {
				continue
			}
			if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name == "-" && !strings.HasPrefix(f.Tag.Get("json"), "-,") {
				continue
			}
			if err := checkTypedUTF8(v.Field(i), depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkUTF8String(s string) error {
	if !utf8.ValidString(s) {
		return newError(KindCanonical, "KYA-CANON-003", "string is not valid UTF-8")
	}
	return nil
}

func checkUTF8Bytes(b []byte) error {
	if !utf8.Valid(b) {
		return newError(KindCanonical, "KYA-CANON-003", "string is not valid UTF-8")
	}
	return nil
}
