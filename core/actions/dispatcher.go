// Package actions maps intents to the side effects the assistant performs on
// the host, currently opening URLs.
package actions

import (
	"context"
	"net/url"
	"strings"

	"github.com/koscakluka/ema-assistant/core/intents"
	"github.com/pkg/browser"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const scopeName = "github.com/koscakluka/ema-assistant/core/actions"

var (
	tracer = otel.Tracer(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

const (
	googleSearchURL  = "https://www.google.com/search?q="
	youtubeSearchURL = "https://www.youtube.com/results?search_query="
	instagramURL     = "https://www.instagram.com"
	facebookURL      = "https://www.facebook.com"
	calculatorURL    = "https://www.google.com/search?q=calculator"
	weatherURL       = "https://www.google.com/search?q=weather"
)

// Opener opens a URL on the host.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to the [Opener] interface.
type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

// BrowserOpener opens URLs in the system browser.
type BrowserOpener struct{}

func (BrowserOpener) Open(url string) error { return browser.OpenURL(url) }

// Action is a side effect chosen for an intent.
type Action struct {
	Kind intents.Kind
	URL  string
}

type Dispatcher struct {
	opener Opener
}

// NewDispatcher creates a dispatcher. A nil opener uses [BrowserOpener].
func NewDispatcher(opener Opener) *Dispatcher {
	if opener == nil {
		opener = BrowserOpener{}
	}
	return &Dispatcher{opener: opener}
}

// ActionFor returns the action for an intent without performing it. ok is
// false for intents whose only effect is the spoken reply.
func ActionFor(intent intents.Intent) (action Action, ok bool) {
	var target string
	switch intent.Kind {
	case intents.KindGoogleSearch:
		target = googleSearchURL + EncodeURIComponent(intent.UserInput)
	case intents.KindYoutubeSearch, intents.KindYoutubePlay:
		target = youtubeSearchURL + EncodeURIComponent(intent.UserInput)
	case intents.KindInstagramOpen:
		target = instagramURL
	case intents.KindFacebookOpen:
		target = facebookURL
	case intents.KindCalculatorOpen:
		target = calculatorURL
	case intents.KindWeatherShow:
		target = weatherURL
	default:
		return Action{}, false
	}
	return Action{Kind: intent.Kind, URL: target}, true
}

// Dispatch performs the action for an intent. Opening is fire-and-forget:
// opener errors are logged and never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, intent intents.Intent) (Action, bool) {
	action, ok := ActionFor(intent)
	if !ok {
		return Action{}, false
	}

	ctx, span := tracer.Start(ctx, "dispatch action")
	defer span.End()
	span.SetAttributes(
		attribute.String("intent.kind", string(intent.Kind)),
		attribute.String("action.url", action.URL),
	)

	if err := d.opener.Open(action.URL); err != nil {
		span.RecordError(err)
		logger.WarnContext(ctx, "failed to open url", "url", action.URL, "error", err)
	}
	return action, true
}

// uriComponentUnescaper restores the bytes url.QueryEscape escapes but a URI
// component leaves alone, and encodes spaces as %20.
var uriComponentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent percent-encodes s for use as a single query value. Only
// letters, digits and -_.!~*'() are left unescaped.
func EncodeURIComponent(s string) string {
	return uriComponentUnescaper.Replace(url.QueryEscape(s))
}
