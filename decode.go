package soundbank

import (
	"fmt"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"
)

// Buffer is a decoded, playable clip. The bank frees it when the clip is
// evicted; playback must not use a freed buffer.
type Buffer struct {
	Format string // one of MediaExtensions
	MIME   string

	data atomic.Pointer[[]byte]
}

func NewBuffer(format, mime string, data []byte) *Buffer {
	b := &Buffer{Format: format, MIME: mime}
	b.data.Store(&data)
	return b
}

// Bytes returns the clip data, or nil once the buffer is freed.
func (b *Buffer) Bytes() []byte {
	if p := b.data.Load(); p != nil {
		return *p
	}
	return nil
}

func (b *Buffer) Len() int { return len(b.Bytes()) }

// Free releases the clip data. Calling it more than once is a no-op.
func (b *Buffer) Free() { b.data.Store(nil) }

func (b *Buffer) Freed() bool { return b.data.Load() == nil }

// Decoder turns file bytes into a playable buffer.
type Decoder interface {
	Decode(filename string, data []byte) (*Buffer, error)
}

// MimeDecoder recognises clips by content sniffing. It accepts any of the
// bank's media types regardless of the file extension.
type MimeDecoder struct{}

var audioFormats = []struct {
	mime   string
	format string
}{
	{"audio/wav", "wav"},
	{"audio/mpeg", "mp3"},
	{"audio/ogg", "ogg"},
	{"application/ogg", "ogg"},
	{"audio/aiff", "aiff"},
}

func (MimeDecoder) Decode(filename string, data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s: empty file", ErrDecode, filename)
	}
	mtype := mimetype.Detect(data)
	for m := mtype; m != nil; m = m.Parent() {
		for _, af := range audioFormats {
			if m.Is(af.mime) {
				return NewBuffer(af.format, mtype.String(), data), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s: detected %s", ErrDecode, filename, mtype.String())
}
