package bencode

import "errors"

// Sentinel decode errors, named after the productions in the bencode
// grammar. Callers use errors.Is to classify a failure; the wrapped
// message adds a short detail (the offending byte, key, or length).
var (
	ErrNotBencoded             = errors.New("bencode: leading byte matches no production")
	ErrInvalidByteString       = errors.New("bencode: malformed byte-string length prefix")
	ErrInvalidByteStringLength = errors.New("bencode: byte-string payload shorter than declared length")
	ErrInvalidInteger          = errors.New("bencode: malformed integer")
	ErrListUnterminated        = errors.New("bencode: list missing terminating 'e'")
	ErrDictUnterminated        = errors.New("bencode: dictionary missing terminating 'e'")
	ErrDictKeyNotByteString    = errors.New("bencode: dictionary key is not a byte-string")
	ErrDictMissingValue        = errors.New("bencode: dictionary key has no matching value")
)
