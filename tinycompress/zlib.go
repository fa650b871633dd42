// Package tinycompress writes zlib streams made of stored (uncompressed)
// DEFLATE blocks. It needs no tables or window, so it runs on the target
// without allocating beyond the caller's buffer, and any zlib reader can
// inflate the result.
package tinycompress

import (
	"hash/adler32"
	"io"
)

// maxStored is the largest payload of one stored block.
const maxStored = 0xFFFF

// zlib header: deflate, 32K window, default level, FCHECK so that the
// 16-bit value is a multiple of 31.
var header = [2]byte{0x78, 0x9C}

// Writer accumulates input and emits the whole stream on Close.
type Writer struct {
	output io.Writer
	buf    []byte
	closed bool
}

// NewWriter returns a Writer targeting w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{output: w}
}

// Write implements io.Writer
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Close writes the header, the stored blocks and the Adler-32 trailer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := w.output.Write(AppendStored(nil, w.buf))
	return err
}

// AppendStored appends the zlib encoding of data to dst.
func AppendStored(dst, data []byte) []byte {
	dst = append(dst, header[0], header[1])
	rest := data
	for {
		n := len(rest)
		if n > maxStored {
			n = maxStored
		}
		var final byte
		if n == len(rest) {
			final = 0x01
		}
		l := uint16(n)
		dst = append(dst, final, byte(l), byte(l>>8), byte(^l), byte(^l>>8))
		dst = append(dst, rest[:n]...)
		rest = rest[n:]
		if final != 0 {
			break
		}
	}
	sum := adler32.Checksum(data)
	return append(dst, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}
