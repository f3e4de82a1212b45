package spectrum

// sampleRing keeps the most recent analysis window of PCM samples. Unlike a
// streaming buffer it never rejects writes: old samples are overwritten, the
// analyzer only ever wants the latest window.
type sampleRing struct {
	buf      []float64
	size     int
	writePos int
	filled   int
}

func newSampleRing(size int) *sampleRing {
	return &sampleRing{
		buf:  make([]float64, size),
		size: size,
	}
}

// push appends samples, overwriting the oldest when the ring is full.
func (r *sampleRing) push(samples []float64) {
	for _, s := range samples {
		r.buf[r.writePos] = s
		r.writePos = (r.writePos + 1) % r.size
		if r.filled < r.size {
			r.filled++
		}
	}
}

// latest fills dst with the most recent len(dst) samples in arrival order.
// When fewer samples exist the front of dst is zero-padded. Returns the
// number of real samples copied.
func (r *sampleRing) latest(dst []float64) int {
	n := len(dst)
	if n > r.filled {
		n = r.filled
	}

	for i := range dst[:len(dst)-n] {
		dst[i] = 0
	}

	pos := (r.writePos - n + r.size) % r.size
	for i := 0; i < n; i++ {
		dst[len(dst)-n+i] = r.buf[pos]
		pos = (pos + 1) % r.size
	}
	return n
}

// reset discards all buffered samples.
func (r *sampleRing) reset() {
	r.writePos = 0
	r.filled = 0
}
