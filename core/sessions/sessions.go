// Package sessions holds the per-session data the intent resolver needs: the
// assistant and owner names used in the instruction template and the ordered
// history of resolved utterances.
package sessions

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/koscakluka/ema-assistant/core/sessions")

var ErrUnknownSession = errors.New("unknown session")

// Profile is the user customisation of the assistant.
type Profile struct {
	AssistantName string
	OwnerName     string
}

// Context is a point-in-time snapshot of a session. History is ordered
// oldest first.
type Context struct {
	SessionID     string
	AssistantName string
	OwnerName     string
	History       []string
}

// Store is the session collaborator. AppendHistory is the only mutation the
// conversation core performs.
type Store interface {
	Context(ctx context.Context, sessionID string) (Context, error)
	AppendHistory(ctx context.Context, sessionID string, text string) error
}
