package audio

import (
	"testing"
	"time"
)

func TestBytesFor(t *testing.T) {
	testCases := []struct {
		name     string
		info     EncodingInfo
		duration time.Duration
		expected int
	}{
		{name: "linear16 16k 50ms", info: EncodingInfo{SampleRate: 16000, Format: FormatLinear16}, duration: 50 * time.Millisecond, expected: 1600},
		{name: "mulaw 8k 1s", info: EncodingInfo{SampleRate: 8000, Format: FormatMulaw}, duration: time.Second, expected: 8000},
		{name: "unknown format", info: EncodingInfo{SampleRate: 8000, Format: Format("opus")}, duration: time.Second, expected: 0},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.info.BytesFor(testCase.duration); got != testCase.expected {
				t.Fatalf("expected %d bytes, got %d", testCase.expected, got)
			}
		})
	}
}

func TestSilenceUsesFormatSilenceValue(t *testing.T) {
	chunk := EncodingInfo{SampleRate: 8000, Format: FormatALaw}.Silence(10 * time.Millisecond)
	if len(chunk) != 80 {
		t.Fatalf("expected 80 bytes, got %d", len(chunk))
	}
	for _, b := range chunk {
		if b != 0x55 {
			t.Fatalf("expected alaw silence byte, got %#x", b)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := GetDefaultEncodingInfo().Validate(); err != nil {
		t.Fatalf("expected default encoding to be valid, got %v", err)
	}
	if err := (EncodingInfo{SampleRate: 0, Format: FormatLinear16}).Validate(); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
	if err := (EncodingInfo{SampleRate: 16000, Format: Format("flac")}).Validate(); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
	if !(EncodingInfo{}).IsZero() {
		t.Fatalf("expected zero value to report IsZero")
	}
}
