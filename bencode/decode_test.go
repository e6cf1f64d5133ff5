package bencode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeByteString(t *testing.T) {
	v, n, err := Decode([]byte("3:hel"))
	require.NoError(t, err)
	assert.Equal(t, KindString, v.Kind)
	assert.Equal(t, "hel", string(v.Str))
	assert.Equal(t, 5, n)
}

func TestDecodeEmptyByteString(t *testing.T) {
	v, n, err := Decode([]byte("0:"))
	require.NoError(t, err)
	assert.Equal(t, "", string(v.Str))
	assert.Equal(t, 2, n)
}

func TestDecodeByteStringTruncated(t *testing.T) {
	_, _, err := Decode([]byte("5:hel"))
	require.ErrorIs(t, err, ErrInvalidByteStringLength)
}

func TestDecodeByteStringNegativeLength(t *testing.T) {
	_, _, err := Decode([]byte("-1:x"))
	require.ErrorIs(t, err, ErrNotBencoded)
}

func TestDecodeInteger(t *testing.T) {
	cases := map[string]int64{
		"i-42e": -42,
		"i0e":   0,
		"i42e":  42,
	}
	for in, want := range cases {
		v, n, err := Decode([]byte(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, v.Int, in)
		assert.Equal(t, len(in), n, in)
	}
}

func TestDecodeIntegerRejectsForbiddenForms(t *testing.T) {
	for _, in := range []string{"i-0e", "i+0e", "i01e", "i-01e", "ie", "i1"} {
		_, _, err := Decode([]byte(in))
		require.ErrorIsf(t, err, ErrInvalidInteger, "input %q", in)
	}
}

func TestDecodeList(t *testing.T) {
	v, n, err := Decode([]byte("l5:helloi43e3:fooi1337ee"))
	require.NoError(t, err)
	require.Equal(t, KindList, v.Kind)
	require.Len(t, v.List, 4)
	assert.Equal(t, "hello", string(v.List[0].Str))
	assert.Equal(t, int64(43), v.List[1].Int)
	assert.Equal(t, "foo", string(v.List[2].Str))
	assert.Equal(t, int64(1337), v.List[3].Int)
	assert.Equal(t, 24, n)
}

func TestDecodeListUnterminated(t *testing.T) {
	_, _, err := Decode([]byte("l5:hello"))
	require.ErrorIs(t, err, ErrListUnterminated)
}

func TestDecodeDict(t *testing.T) {
	v, n, err := Decode([]byte("d4:key1i1e4:key2i2ee"))
	require.NoError(t, err)
	require.Equal(t, KindDict, v.Kind)
	require.Len(t, v.Dict, 2)
	assert.Equal(t, int64(1), v.Dict["key1"].Int)
	assert.Equal(t, int64(2), v.Dict["key2"].Int)
	assert.Equal(t, 20, n)
}

func TestDecodeDictKeyNotString(t *testing.T) {
	_, _, err := Decode([]byte("di1ei2ee"))
	require.ErrorIs(t, err, ErrDictKeyNotByteString)
}

func TestDecodeDictMissingValue(t *testing.T) {
	_, _, err := Decode([]byte("d3:fooe"))
	require.ErrorIs(t, err, ErrDictMissingValue)
}

func TestDecodeNotBencoded(t *testing.T) {
	_, _, err := Decode([]byte("xyz"))
	require.ErrorIs(t, err, ErrNotBencoded)
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	inputs := []string{
		"3:hel",
		"i-42e",
		"i0e",
		"l5:helloi43e3:fooi1337ee",
		"d4:key1i1e4:key2i2ee",
	}
	for _, in := range inputs {
		v, n, err := Decode([]byte(in))
		require.NoError(t, err, in)
		require.Equal(t, len(in), n, in)
		assert.Equal(t, in, string(Encode(v)), in)
	}
}

func TestEncodeDictSortsKeys(t *testing.T) {
	v := Value{Kind: KindDict, Dict: map[string]Value{
		"zeta":  Int(1),
		"alpha": Int(2),
	}}
	assert.Equal(t, "d5:alphai2e4:zetai1ee", string(Encode(v)))
}
