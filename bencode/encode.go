package bencode

import (
	"sort"
	"strconv"
)

// Encode serializes v back to its bencoded form. Dictionary keys are
// always emitted in lexicographic byte order, which is what canonical
// re-encoding (hashing "info") requires; this also makes Encode safe
// to use on a dictionary decoded from input with keys in any order.
func Encode(v Value) []byte {
	var buf []byte
	return appendValue(buf, v)
}

func appendValue(buf []byte, v Value) []byte {
	switch v.Kind {
	case KindString:
		buf = strconv.AppendInt(buf, int64(len(v.Str)), 10)
		buf = append(buf, ':')
		buf = append(buf, v.Str...)
		return buf
	case KindInt:
		buf = append(buf, 'i')
		buf = strconv.AppendInt(buf, v.Int, 10)
		buf = append(buf, 'e')
		return buf
	case KindList:
		buf = append(buf, 'l')
		for _, item := range v.List {
			buf = appendValue(buf, item)
		}
		buf = append(buf, 'e')
		return buf
	case KindDict:
		buf = append(buf, 'd')
		keys := make([]string, 0, len(v.Dict))
		for k := range v.Dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf = appendValue(buf, Value{Kind: KindString, Str: []byte(k)})
			buf = appendValue(buf, v.Dict[k])
		}
		buf = append(buf, 'e')
		return buf
	default:
		return buf
	}
}

// String constructs a KindString Value from a []byte.
func String(b []byte) Value { return Value{Kind: KindString, Str: b} }

// Int constructs a KindInt Value.
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }
