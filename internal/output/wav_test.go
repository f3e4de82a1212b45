package output

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSpec = WAVSpec{SampleRate: 16000, Channels: 1, BitDepth: 16}

func TestWriteWAVHeader(t *testing.T) {
	pcm := make([]byte, 32000) // 1s of 16kHz mono 16-bit

	var buf bytes.Buffer
	require.NoError(t, WriteWAV(&buf, pcm, testSpec))

	out := buf.Bytes()
	require.Len(t, out, 44+len(pcm))

	assert.Equal(t, "RIFF", string(out[0:4]))
	assert.Equal(t, "WAVE", string(out[8:12]))
	assert.Equal(t, "fmt ", string(out[12:16]))
	assert.Equal(t, "data", string(out[36:40]))

	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(out[4:8]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[20:22]), "PCM format")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]), "mono")
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(out[24:28]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(out[28:32]), "byte rate")
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(out[32:34]), "block align")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(out[34:36]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(out[40:44]))

	assert.Equal(t, pcm, out[44:], "payload is the untouched artifact")
}

func TestWriteWAVRejectsIncompleteSpec(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteWAV(&buf, nil, WAVSpec{}))
}

func TestSaveWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.wav")
	pcm := []byte{0x01, 0x02, 0x03, 0x04}

	require.NoError(t, SaveWAV(path, pcm, testSpec))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 48)
	assert.Equal(t, pcm, data[44:])
}

func TestFormatters(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		f, err := NewFormatter("json", &buf)
		require.NoError(t, err)

		require.NoError(t, f.WriteResult(SampleResult{Index: 1, DurationMs: 1300, Bytes: 41600, MediaType: "audio/wave"}))
		assert.Contains(t, buf.String(), `"duration_ms": 1300`)
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		f, err := NewFormatter("text", &buf)
		require.NoError(t, err)

		require.NoError(t, f.WriteResult(SampleResult{Index: 2, DurationMs: 1500, Bytes: 100, MediaType: "audio/wave", File: "a.wav"}))
		assert.Contains(t, buf.String(), "[2]")
		assert.Contains(t, buf.String(), "1.5s")
		assert.Contains(t, buf.String(), "a.wav")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewFormatter("xml", nil)
		assert.Error(t, err)
	})
}
