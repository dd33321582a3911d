package display

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/woxQAQ/fchost/internal/bridge"
)

// Discard is an AudioDevice that drops every chunk.
var Discard bridge.AudioDevice = discard{}

type discard struct{}

func (discard) Play(context.Context, bridge.AudioChunk) error { return nil }

const (
	wavHeaderSize  = 44
	wavFormatFloat = 3
)

// WAVWriter is an AudioDevice writing mono 32-bit float WAV. The RIFF sizes
// are filled in by Close.
type WAVWriter struct {
	w          io.WriteSeeker
	closer     io.Closer
	sampleRate int
	samples    uint32
	buf        []byte
}

// CreateWAV creates path and writes a WAV header for sampleRate.
func CreateWAV(path string, sampleRate int) (*WAVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create wav file: %w", err)
	}
	w, err := NewWAVWriter(f, sampleRate)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWAVWriter writes a WAV header to w. Closing the writer does not close w.
func NewWAVWriter(w io.WriteSeeker, sampleRate int) (*WAVWriter, error) {
	ww := &WAVWriter{w: w, sampleRate: sampleRate}
	if err := ww.writeHeader(); err != nil {
		return nil, err
	}
	return ww, nil
}

// Play appends the chunk's samples.
func (w *WAVWriter) Play(_ context.Context, chunk bridge.AudioChunk) error {
	if n := len(chunk.Samples) * 4; cap(w.buf) < n {
		w.buf = make([]byte, n)
	}
	buf := w.buf[:len(chunk.Samples)*4]
	for i, s := range chunk.Samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	if _, err := w.w.Write(buf); err != nil {
		return err
	}
	w.samples += uint32(len(chunk.Samples))
	return nil
}

// Samples returns how many samples were written.
func (w *WAVWriter) Samples() uint32 {
	return w.samples
}

// Close patches the header sizes and closes the file CreateWAV opened.
func (w *WAVWriter) Close() error {
	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	err := w.writeHeader()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (w *WAVWriter) writeHeader() error {
	dataSize := w.samples * 4
	h := make([]byte, wavHeaderSize)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], 36+dataSize)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16)
	binary.LittleEndian.PutUint16(h[20:], wavFormatFloat)
	binary.LittleEndian.PutUint16(h[22:], 1) // mono
	binary.LittleEndian.PutUint32(h[24:], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(h[28:], uint32(w.sampleRate)*4)
	binary.LittleEndian.PutUint16(h[32:], 4)
	binary.LittleEndian.PutUint16(h[34:], 32)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], dataSize)
	_, err := w.w.Write(h)
	return err
}
