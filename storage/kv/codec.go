package kv

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// An entry record is a protobuf message:
//
//  message Entry {
//    string key = 1;
//    string value = 2;
//  }
const (
	entryKeyField   protowire.Number = 1
	entryValueField protowire.Number = 2
)

func marshalEntry(key string, value string) []byte {
	var b []byte

	b = protowire.AppendTag(b, entryKeyField, protowire.BytesType)
	b = protowire.AppendString(b, key)
	b = protowire.AppendTag(b, entryValueField, protowire.BytesType)
	b = protowire.AppendString(b, value)

	return b
}

func unmarshalEntry(b []byte) (string, string, error) {
	var key, value string
	var hasKey bool

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)

		if n < 0 {
			return "", "", protowire.ParseError(n)
		}

		b = b[n:]

		switch {
		case num == entryKeyField && typ == protowire.BytesType:
			key, n = protowire.ConsumeString(b)
			hasKey = true
		case num == entryValueField && typ == protowire.BytesType:
			value, n = protowire.ConsumeString(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}

		if n < 0 {
			return "", "", protowire.ParseError(n)
		}

		b = b[n:]
	}

	if !hasKey {
		return "", "", errors.New("entry has no key")
	}

	return key, value, nil
}
