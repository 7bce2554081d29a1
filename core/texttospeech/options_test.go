package texttospeech

import (
	"testing"

	"github.com/koscakluka/ema-assistant/core/audio"
)

func TestApplyFillsNoopCallbacks(t *testing.T) {
	options := Apply(WithSpeechEndedCallback(nil))

	options.SpeechAudioCallback([]byte{1})
	options.SpeechMarkCallback("mark")
	options.SpeechEndedCallback()
	options.ErrorCallback(nil)

	if options.EncodingInfo != audio.GetDefaultEncodingInfo() {
		t.Fatalf("expected default encoding, got %+v", options.EncodingInfo)
	}
}

func TestWithEncodingInfoIgnoresZeroValue(t *testing.T) {
	custom := audio.EncodingInfo{SampleRate: 24000, Format: audio.FormatLinear16}
	options := Apply(WithEncodingInfo(custom), WithEncodingInfo(audio.EncodingInfo{}))
	if options.EncodingInfo != custom {
		t.Fatalf("expected custom encoding to be kept, got %+v", options.EncodingInfo)
	}
}
