package audio

import "sync"

// MediaTypeWave is the media type every assembled artifact is tagged with,
// independent of how the device encoded its fragments.
const MediaTypeWave = "audio/wave"

// Accumulator collects the binary fragments emitted during one recording
// session, in emission order, and assembles them into a single artifact.
type Accumulator struct {
	mu        sync.Mutex
	fragments [][]byte
	bytes     int
}

// NewAccumulator creates an empty fragment accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Append buffers one fragment. Zero-length fragments are discarded; they are
// not an error. The data is copied so callers may reuse their buffer.
func (a *Accumulator) Append(data []byte) {
	if len(data) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	a.fragments = append(a.fragments, cp)
	a.bytes += len(cp)
}

// Len returns the number of buffered fragments.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.fragments)
}

// Bytes returns the total buffered payload size.
func (a *Accumulator) Bytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bytes
}

// Assemble concatenates all buffered fragments into one artifact. This is a
// pure transformation of ordered fragments into a single blob, not a
// re-encode. The buffer is left untouched.
func (a *Accumulator) Assemble() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	artifact := make([]byte, 0, a.bytes)
	for _, frag := range a.fragments {
		artifact = append(artifact, frag...)
	}
	return artifact
}

// Reset discards all buffered fragments.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fragments = nil
	a.bytes = 0
}
