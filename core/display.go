package orchestration

import (
	"errors"

	"github.com/koscakluka/ema-assistant/core/intents"
)

const (
	DisplayIdle        = "Your reply will appear here."
	DisplayListening   = "Listening..."
	DisplayThinking    = "Thinking..."
	DisplaySpeechError = "Speech error. Please try again."
	DisplayNoVoice     = "Speech recognition is not available. Type your request instead."
	DisplayPlaybackErr = "Sorry, I couldn't say that out loud."

	ApologyNetwork   = "I apologize, but I encountered an error. Please try again."
	ApologyMalformed = "Sorry, I didn't understand that."
)

// apologyFor picks the spoken apology for a failed resolution.
func apologyFor(err error) string {
	if errors.Is(err, intents.ErrMalformedReply) {
		return ApologyMalformed
	}
	return ApologyNetwork
}
