package intents

import (
	"strings"
	"testing"

	"github.com/koscakluka/ema-assistant/core/sessions"
)

func TestInstructionsIncludeNamesAndKinds(t *testing.T) {
	instructions := Instructions(sessions.Context{AssistantName: "Jarvis", OwnerName: "Tony"})

	for _, expected := range []string{
		"named Jarvis",
		"created by Tony",
		"that Tony created you",
		`"userInput"`,
		string(KindYoutubePlay),
		string(KindWeatherShow),
	} {
		if !strings.Contains(instructions, expected) {
			t.Fatalf("expected instructions to contain %q", expected)
		}
	}
}

func TestInstructionsFallBackToDefaults(t *testing.T) {
	instructions := Instructions(sessions.Context{})
	if !strings.Contains(instructions, "named "+defaultAssistantName) {
		t.Fatalf("expected default assistant name in instructions")
	}
}

func TestReplySchemaListsEveryKind(t *testing.T) {
	for _, kind := range AllKinds() {
		if !strings.Contains(replySchema, `"`+string(kind)+`"`) {
			t.Fatalf("expected schema enum to contain %q", kind)
		}
	}
}
