// Package wire implements the tagged-map framing used to serialise main
// chain messages on the wire: every field of a record is assigned a stable
// small-integer key starting at 1, written as key-then-value. Keys are
// written in ascending order and the reader enforces that order, so field
// keys can never be silently reordered across versions.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ErrUnexpectedKey is returned when a decoded field key does not match the
// next expected key, which means the stream is either corrupt or was
// produced by an incompatible encoder.
var ErrUnexpectedKey = errors.New("wire: unexpected field key")

// CountingWriter discards everything written to it and only counts bytes.
// Used for the size-counter pre-pass required by fixed-allocation writers
// before the real encode happens.
type CountingWriter struct {
	n int
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	c.n += len(p)
	return len(p), nil
}

// Size returns the number of bytes written so far.
func (c *CountingWriter) Size() int { return c.n }

// Writer writes stable-keyed fields to an underlying io.Writer, in
// ascending key order starting at 1.
type Writer struct {
	w    io.Writer
	next uint8
}

// NewWriter returns a Writer whose first field will be tagged key 1.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, next: 1}
}

func (w *Writer) writeKey() error {
	if _, err := w.w.Write([]byte{w.next}); err != nil {
		return err
	}
	w.next++
	return nil
}

// Uint64 writes the next field as a fixed 8-byte big-endian integer.
func (w *Writer) Uint64(v uint64) error {
	if err := w.writeKey(); err != nil {
		return err
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.w.Write(buf[:])
	return err
}

// Bool writes the next field as a single byte, 0 or 1.
func (w *Writer) Bool(v bool) error {
	if err := w.writeKey(); err != nil {
		return err
	}
	b := byte(0)
	if v {
		b = 1
	}
	_, err := w.w.Write([]byte{b})
	return err
}

// FixedBytes writes the next field verbatim, with no length prefix. Used
// for fixed-size values such as digests, whose length is implicit in the
// schema and never needs to travel on the wire.
func (w *Writer) FixedBytes(v []byte) error {
	if err := w.writeKey(); err != nil {
		return err
	}
	_, err := w.w.Write(v)
	return err
}

// Bytes writes the next field as a length-prefixed byte string.
func (w *Writer) Bytes(v []byte) error {
	if err := w.writeKey(); err != nil {
		return err
	}
	var lbuf [4]byte
	binary.BigEndian.PutUint32(lbuf[:], uint32(len(v)))
	if _, err := w.w.Write(lbuf[:]); err != nil {
		return err
	}
	_, err := w.w.Write(v)
	return err
}

// Slice writes the next field as a length-prefixed sequence of
// independently framed elements. encodeElem is called once per element
// with a fresh buffer; the element's own encoding (its own key
// numbering, starting again at 1) is opaque to the outer frame.
func (w *Writer) Slice(n int, encodeElem func(i int, w io.Writer) error) error {
	if err := w.writeKey(); err != nil {
		return err
	}
	var cbuf [4]byte
	binary.BigEndian.PutUint32(cbuf[:], uint32(n))
	if _, err := w.w.Write(cbuf[:]); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		var elem bytes.Buffer
		if err := encodeElem(i, &elem); err != nil {
			return err
		}
		var lbuf [4]byte
		binary.BigEndian.PutUint32(lbuf[:], uint32(elem.Len()))
		if _, err := w.w.Write(lbuf[:]); err != nil {
			return err
		}
		if _, err := w.w.Write(elem.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// Reader reads stable-keyed fields from an underlying io.Reader, enforcing
// ascending key order starting at 1.
type Reader struct {
	r    io.Reader
	next uint8
}

// NewReader returns a Reader expecting its first field tagged key 1.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, next: 1}
}

func (r *Reader) expectKey() error {
	var kb [1]byte
	if _, err := io.ReadFull(r.r, kb[:]); err != nil {
		return err
	}
	if kb[0] != r.next {
		return ErrUnexpectedKey
	}
	r.next++
	return nil
}

// Uint64 reads the next field as a fixed 8-byte big-endian integer.
func (r *Reader) Uint64() (uint64, error) {
	if err := r.expectKey(); err != nil {
		return 0, err
	}
	var buf [8]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// Bool reads the next field as a single byte.
func (r *Reader) Bool() (bool, error) {
	if err := r.expectKey(); err != nil {
		return false, err
	}
	var b [1]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// FixedBytes reads exactly len(dst) bytes into dst as the next field.
func (r *Reader) FixedBytes(dst []byte) error {
	if err := r.expectKey(); err != nil {
		return err
	}
	_, err := io.ReadFull(r.r, dst)
	return err
}

// Bytes reads the next field as a length-prefixed byte string.
func (r *Reader) Bytes() ([]byte, error) {
	if err := r.expectKey(); err != nil {
		return nil, err
	}
	var lbuf [4]byte
	if _, err := io.ReadFull(r.r, lbuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lbuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Slice reads the next field as a length-prefixed sequence of
// independently framed elements, calling decodeElem once per element with
// a reader scoped to exactly that element's bytes.
func (r *Reader) Slice(decodeElem func(i int, r io.Reader) error) (int, error) {
	if err := r.expectKey(); err != nil {
		return 0, err
	}
	var cbuf [4]byte
	if _, err := io.ReadFull(r.r, cbuf[:]); err != nil {
		return 0, err
	}
	n := int(binary.BigEndian.Uint32(cbuf[:]))
	for i := 0; i < n; i++ {
		var lbuf [4]byte
		if _, err := io.ReadFull(r.r, lbuf[:]); err != nil {
			return 0, err
		}
		elemLen := binary.BigEndian.Uint32(lbuf[:])
		elemBuf := make([]byte, elemLen)
		if _, err := io.ReadFull(r.r, elemBuf); err != nil {
			return 0, err
		}
		if err := decodeElem(i, bytes.NewReader(elemBuf)); err != nil {
			return 0, err
		}
	}
	return n, nil
}
