package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// WAVSpec describes the PCM layout of an assembled artifact.
type WAVSpec struct {
	SampleRate uint32
	Channels   uint16
	BitDepth   uint16
}

// WriteWAV wraps raw PCM in a canonical 44-byte WAV header. The artifact
// itself stays a plain fragment concatenation; the container is applied only
// at this export boundary so downstream tooling can decode the file.
func WriteWAV(w io.Writer, pcm []byte, spec WAVSpec) error {
	if spec.SampleRate == 0 || spec.Channels == 0 || spec.BitDepth == 0 {
		return fmt.Errorf("incomplete wav spec: %+v", spec)
	}

	blockAlign := spec.Channels * spec.BitDepth / 8
	byteRate := spec.SampleRate * uint32(blockAlign)
	dataLen := uint32(len(pcm))

	var header [44]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataLen)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(header[22:24], spec.Channels)
	binary.LittleEndian.PutUint32(header[24:28], spec.SampleRate)
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], spec.BitDepth)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataLen)

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	return nil
}

// SaveWAV writes the artifact to path as a WAV file.
func SaveWAV(path string, pcm []byte, spec WAVSpec) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteWAV(f, pcm, spec); err != nil {
		return err
	}
	return f.Sync()
}
