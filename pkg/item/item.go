// Package item defines the unit of work flowing through a spawn pipeline: a path and a payload.
//
// The payload representation is chosen when the item is created and never changes: an empty
// item carries nothing, a bytes item carries an owned buffer and a stream item carries an owned
// io.ReadCloser. Stages replace the payload with SetBytes or SetStream, keeping the
// representation.
package item

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the representation of an item payload.
type Kind int

const (
	// Empty items carry no payload and are passed through untouched.
	Empty Kind = iota
	// Bytes items carry an in-memory buffer.
	Bytes
	// Stream items carry a reader that may be larger than memory.
	Stream
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Bytes:
		return "bytes"
	case Stream:
		return "stream"
	default:
		return "unknown"
	}
}

// ErrKindMismatch is returned when a payload of the wrong representation is set on an item.
var ErrKindMismatch = errors.New("payload kind mismatch")

// Item is one unit of work. Path may be rewritten by stages.
type Item struct {
	Path string

	kind   Kind
	buf    []byte
	stream io.ReadCloser
}

// NewEmpty creates an item without payload.
func NewEmpty(path string) *Item {
	return &Item{Path: path, kind: Empty}
}

// NewBytes creates an item owning buf. A nil buf is still a bytes payload of zero length.
func NewBytes(path string, buf []byte) *Item {
	if buf == nil {
		buf = []byte{}
	}

	return &Item{Path: path, kind: Bytes, buf: buf}
}

// NewStream creates an item owning stream.
func NewStream(path string, stream io.ReadCloser) *Item {
	return &Item{Path: path, kind: Stream, stream: stream}
}

// Kind returns the payload representation.
func (i *Item) Kind() Kind {
	return i.kind
}

// IsEmpty reports whether the item carries no payload.
func (i *Item) IsEmpty() bool {
	return i.kind == Empty
}

// Bytes returns the buffer of a bytes item.
func (i *Item) Bytes() []byte {
	return i.buf
}

// Stream returns the reader of a stream item.
func (i *Item) Stream() io.ReadCloser {
	return i.stream
}

// SetBytes replaces the buffer of a bytes item.
func (i *Item) SetBytes(buf []byte) error {
	if i.kind != Bytes {
		return errors.Wrapf(ErrKindMismatch, "cannot set bytes on a %s item", i.kind)
	}

	if buf == nil {
		buf = []byte{}
	}
	i.buf = buf

	return nil
}

// SetStream replaces the reader of a stream item.
func (i *Item) SetStream(stream io.ReadCloser) error {
	if i.kind != Stream {
		return errors.Wrapf(ErrKindMismatch, "cannot set a stream on a %s item", i.kind)
	}

	i.stream = stream

	return nil
}

// Dir returns the directory of the item path.
func (i *Item) Dir() string {
	return filepath.Dir(i.Path)
}

// Ext returns the extension of the item path, dot included.
func (i *Item) Ext() string {
	return filepath.Ext(i.Path)
}

// Base returns the file name of the item path without its extension.
func (i *Item) Base() string {
	return strings.TrimSuffix(filepath.Base(i.Path), i.Ext())
}

// Rename rewrites the file name of the item path. fn receives the base name and the extension
// and returns the new file name; the directory is kept.
func (i *Item) Rename(fn func(base, ext string) string) {
	i.Path = filepath.Join(i.Dir(), fn(i.Base(), i.Ext()))
}

// ReadAll returns the whole payload, reading and closing the stream of a stream item.
func (i *Item) ReadAll() ([]byte, error) {
	switch i.kind {
	case Bytes:
		return i.buf, nil
	case Stream:
		if i.stream == nil {
			return []byte{}, nil
		}
		defer i.stream.Close()

		buf, err := io.ReadAll(i.stream)
		if err != nil {
			return buf, errors.Wrapf(err, "unable to read %s", i.Path)
		}

		return buf, nil
	default:
		return nil, nil
	}
}
