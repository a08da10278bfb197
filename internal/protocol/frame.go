package protocol

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the length prefix size on TCP exchanges.
const HeaderSize = 4

// Frame prepends the 4-byte big-endian length header to an encrypted
// payload. The header counts payload bytes only, and the cipher is length
// preserving, so the value also equals the plaintext length.
func Frame(ciphertext []byte) []byte {
	framed := make([]byte, HeaderSize+len(ciphertext))
	binary.BigEndian.PutUint32(framed[:HeaderSize], uint32(len(ciphertext)))
	copy(framed[HeaderSize:], ciphertext)
	return framed
}

// Deframe splits a framed buffer into the declared length and the payload
// that follows the header. A zero header is legal on the wire (some
// firmware never fills it in), so the declared length is reported as-is and
// not checked against the payload.
func Deframe(framed []byte) (uint32, []byte, error) {
	if len(framed) < HeaderSize {
		return 0, nil, fmt.Errorf("reply too short for length header: %d bytes (minimum %d)", len(framed), HeaderSize)
	}
	return binary.BigEndian.Uint32(framed[:HeaderSize]), framed[HeaderSize:], nil
}
