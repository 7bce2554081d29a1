package intents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-assistant/core/sessions"
)

const (
	defaultAssistantName = "Ema"
	defaultOwnerName     = "its developers"
)

// replyPayload documents the shape the upstream model has to answer with.
type replyPayload struct {
	Kind      string `json:"kind" jsonschema:"description=Intent classification of the user input"`
	UserInput string `json:"userInput" jsonschema:"description=The user input with the assistant name removed. For searches only the search text"`
	Reply     string `json:"reply" jsonschema:"description=Short voice friendly sentence to speak back to the user"`
}

var kindDescriptions = map[Kind]string{
	KindGeneral:        "factual or informational question, or small talk. Answer it shortly in reply",
	KindGoogleSearch:   "the user wants to search something on Google",
	KindYoutubeSearch:  "the user wants to search something on YouTube",
	KindYoutubePlay:    "the user wants to play a video or song directly",
	KindCalculatorOpen: "the user wants to open a calculator",
	KindInstagramOpen:  "the user wants to open Instagram",
	KindFacebookOpen:   "the user wants to open Facebook",
	KindWeatherShow:    "the user wants to know the weather",
	KindGetTime:        "the user asks for the current time",
	KindGetDate:        "the user asks for today's date",
	KindGetDay:         "the user asks what day it is",
	KindGetMonth:       "the user asks for the current month",
}

var replySchema = func() string {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&replyPayload{})

	if kindSchema, ok := schema.Properties.Get("kind"); ok {
		for _, kind := range allKinds {
			kindSchema.Enum = append(kindSchema.Enum, string(kind))
		}
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		panic(fmt.Sprintf("failed to marshal reply schema: %v", err))
	}
	return string(schemaBytes)
}()

// Instructions renders the system instructions for a session.
func Instructions(session sessions.Context) string {
	assistantName := strings.TrimSpace(session.AssistantName)
	if assistantName == "" {
		assistantName = defaultAssistantName
	}
	ownerName := strings.TrimSpace(session.OwnerName)
	if ownerName == "" {
		ownerName = defaultOwnerName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a voice-activated virtual assistant named %s, created by %s.\n", assistantName, ownerName)
	b.WriteString("You are not Google. You behave like a voice assistant.\n\n")
	b.WriteString("Understand the user's natural language input and answer with one JSON object only, matching this schema:\n")
	b.WriteString(replySchema)
	b.WriteString("\n\nKinds:\n")
	for _, kind := range allKinds {
		fmt.Fprintf(&b, "- %s: %s\n", kind, kindDescriptions[kind])
	}
	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b, "- Remove the name %s from userInput if the user said it.\n", assistantName)
	b.WriteString("- For google_search, youtube_search and youtube_play put only the search text in userInput.\n")
	b.WriteString("- reply is a short sentence meant to be spoken, for example \"Sure, playing it now\" or \"Here's what I found\".\n")
	fmt.Fprintf(&b, "- If the user asks who you are, reply that you are %s.\n", assistantName)
	fmt.Fprintf(&b, "- If the user asks who created you, reply that %s created you.\n", ownerName)
	b.WriteString("- Only respond with the JSON object, nothing else.\n")
	return b.String()
}
