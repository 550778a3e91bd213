package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 1 + 4
)

// Format ids. Values are persisted; never renumber.
const (
	FormatMsgpack  byte = 1
	FormatCBOR     byte = 2
	FormatProtobuf byte = 3
)

var (
	ErrCorrupt        = errors.New("memocache: corrupt artifact")
	ErrFormatMismatch = errors.New("memocache: artifact format mismatch")
	magic4            = [...]byte{'M', 'E', 'M', 'O'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames a binary artifact payload:
//
//	magic(4) | ver(1) | format(1) | plen(u32 be) | payload(plen)
func Encode(format byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(format)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode validates the frame and returns the payload. A well-formed frame
// written for another format yields ErrFormatMismatch.
func Decode(want byte, b []byte) ([]byte, error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return nil, ErrCorrupt
	}
	if b[5] != want {
		return nil, ErrFormatMismatch
	}

	off := 6
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if plen < 0 || plen != len(b)-off { // exact: no trailing bytes
		return nil, ErrCorrupt
	}
	return b[off:], nil
}

// Peek reports the format id of a framed artifact without validating the
// payload length.
func Peek(b []byte) (byte, bool) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return 0, false
	}
	return b[5], true
}
