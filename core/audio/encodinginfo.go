// Package audio describes raw audio streams exchanged between devices and
// speech services.
package audio

import (
	"fmt"
	"time"
)

const (
	DefaultSampleRate = 16000
	DefaultFormat     = FormatLinear16
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: DefaultFormat}
}

// Format is the sample encoding of a mono stream.
type Format string

const (
	FormatMulaw    Format = "mulaw"
	FormatALaw     Format = "alaw"
	FormatLinear16 Format = "linear16"
)

func (f Format) Name() string { return string(f) }

// ByteSize returns the size of one sample, or -1 for unknown formats.
func (f Format) ByteSize() int {
	switch f {
	case FormatMulaw, FormatALaw:
		return 1
	case FormatLinear16:
		return 2
	}
	return -1
}

// SilenceValue returns the byte that encodes silence in this format.
func (f Format) SilenceValue() byte {
	switch f {
	case FormatALaw:
		return 0x55
	case FormatMulaw:
		return 0xFF
	}
	return 0
}

type EncodingInfo struct {
	SampleRate int
	Format     Format
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) Validate() error {
	if e.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", e.SampleRate)
	}
	if e.Format.ByteSize() < 0 {
		return fmt.Errorf("unsupported format %q", e.Format)
	}
	return nil
}

// BytesFor returns the number of bytes holding duration of audio.
func (e EncodingInfo) BytesFor(duration time.Duration) int {
	if e.Format.ByteSize() < 0 {
		return 0
	}
	return int(int64(e.SampleRate) * int64(e.Format.ByteSize()) * duration.Milliseconds() / 1000)
}

// Silence returns a chunk of silence of the given duration.
func (e EncodingInfo) Silence(duration time.Duration) []byte {
	chunk := make([]byte, e.BytesFor(duration))
	if silence := e.Format.SilenceValue(); silence != 0 {
		for i := range chunk {
			chunk[i] = silence
		}
	}
	return chunk
}
