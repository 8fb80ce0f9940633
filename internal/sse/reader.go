package sse

import (
	"errors"
	"fmt"
	"io"
)

const readChunkSize = 4096

// Reader pulls Delta events out of an underlying byte stream. The Done
// event is consumed internally: after it the source is drained to EOF and
// Next returns io.EOF.
type Reader struct {
	src io.Reader
	dec *Decoder
	buf []byte
	eof bool
	err error
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src: src,
		dec: NewDecoder(),
		buf: make([]byte, readChunkSize),
	}
}

// Next returns the next delta event, io.EOF when the stream completed, or
// the read error that ended it.
func (r *Reader) Next() (Event, error) {
	for {
		if ev, ok := r.dec.Next(); ok {
			if ev.Done {
				continue
			}
			return ev, nil
		}
		if r.eof {
			return Event{}, r.err
		}
		r.fill()
	}
}

// Dropped returns the number of unparsable lines skipped so far.
func (r *Reader) Dropped() int {
	return r.dec.Dropped()
}

// fill performs exactly one read from the source and feeds the decoder.
func (r *Reader) fill() {
	n, err := r.src.Read(r.buf)
	if n > 0 {
		_, _ = r.dec.Write(r.buf[:n])
	}
	if err == nil {
		return
	}
	r.eof = true
	r.dec.Finish()
	if errors.Is(err, io.EOF) {
		r.err = io.EOF
		return
	}
	r.err = fmt.Errorf("sse: read stream: %w", err)
}

// Consume reads src to completion and hands every delta to apply in arrival
// order. A clean end of stream returns nil.
func Consume(src io.Reader, apply func(delta string)) error {
	r := NewReader(src)
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		apply(ev.Delta)
	}
}
