package soundbank

import (
	"sync"
	"sync/atomic"
)

// Handle is an in-progress playback of a buffer.
type Handle interface {
	Buffer() *Buffer
	Stop()
}

// Playback lists the handles currently playing. Eviction stops every handle
// whose buffer is the evicted one.
type Playback interface {
	Active() []Handle
}

// Mixer is an in-process Playback. It tracks voices; it does not drive an
// output device.
type Mixer struct {
	mu     sync.Mutex
	voices map[*Voice]struct{}
}

func NewMixer() *Mixer {
	return &Mixer{voices: make(map[*Voice]struct{})}
}

// Play starts a voice for buf. A nil or freed buffer yields a stopped voice.
func (m *Mixer) Play(buf *Buffer) *Voice {
	v := &Voice{mixer: m, buf: buf}
	if buf == nil || buf.Freed() {
		v.stopped.Store(true)
		return v
	}
	m.mu.Lock()
	m.voices[v] = struct{}{}
	m.mu.Unlock()
	return v
}

func (m *Mixer) Active() []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	handles := make([]Handle, 0, len(m.voices))
	for v := range m.voices {
		handles = append(handles, v)
	}
	return handles
}

func (m *Mixer) remove(v *Voice) {
	m.mu.Lock()
	delete(m.voices, v)
	m.mu.Unlock()
}

// Voice is one playback started by a Mixer.
type Voice struct {
	mixer   *Mixer
	buf     *Buffer
	stopped atomic.Bool
}

func (v *Voice) Buffer() *Buffer { return v.buf }

func (v *Voice) Stop() {
	if v.stopped.CompareAndSwap(false, true) {
		v.mixer.remove(v)
	}
}

func (v *Voice) Stopped() bool { return v.stopped.Load() }
