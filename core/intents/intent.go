// Package intents turns an utterance into a classified [Intent] by asking an
// upstream language model and validating its reply.
package intents

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of intents the assistant can act on.
type Kind string

const (
	KindGetDate        Kind = "get_date"
	KindGetTime        Kind = "get_time"
	KindGetDay         Kind = "get_day"
	KindGetMonth       Kind = "get_month"
	KindGoogleSearch   Kind = "google_search"
	KindYoutubeSearch  Kind = "youtube_search"
	KindYoutubePlay    Kind = "youtube_play"
	KindGeneral        Kind = "general"
	KindCalculatorOpen Kind = "calculator_open"
	KindInstagramOpen  Kind = "instagram_open"
	KindFacebookOpen   Kind = "facebook_open"
	KindWeatherShow    Kind = "weather_show"
)

var allKinds = []Kind{
	KindGeneral,
	KindGoogleSearch,
	KindYoutubeSearch,
	KindYoutubePlay,
	KindGetDate,
	KindGetTime,
	KindGetDay,
	KindGetMonth,
	KindCalculatorOpen,
	KindInstagramOpen,
	KindFacebookOpen,
	KindWeatherShow,
}

var kindsByNormalizedName = func() map[string]Kind {
	kinds := make(map[string]Kind, len(allKinds))
	for _, kind := range allKinds {
		kinds[normalizeKindName(string(kind))] = kind
	}
	return kinds
}()

// AllKinds returns every supported kind.
func AllKinds() []Kind {
	kinds := make([]Kind, len(allKinds))
	copy(kinds, allKinds)
	return kinds
}

// ParseKind maps free-form kind text to a [Kind]. Case, underscores, hyphens
// and spaces are ignored so "google-search", "GOOGLE_SEARCH" and
// "googleSearch" all resolve to [KindGoogleSearch].
func ParseKind(text string) (Kind, error) {
	if kind, ok := kindsByNormalizedName[normalizeKindName(text)]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, text)
}

func normalizeKindName(text string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(text)))
}

func (k Kind) String() string { return string(k) }

// IsTemporal reports whether the reply of this kind is produced from the
// local clock instead of the upstream model.
func (k Kind) IsTemporal() bool {
	switch k {
	case KindGetDate, KindGetTime, KindGetDay, KindGetMonth:
		return true
	}
	return false
}

// NeedsQuery reports whether the action of this kind searches for the
// user input, so the input must not be empty.
func (k Kind) NeedsQuery() bool {
	switch k {
	case KindGoogleSearch, KindYoutubeSearch, KindYoutubePlay:
		return true
	}
	return false
}

// Intent is the validated classification of one utterance.
type Intent struct {
	Kind      Kind
	UserInput string
	Reply     string
}

// Source tells where an utterance came from.
type Source string

const (
	SourceVoice  Source = "voice"
	SourceManual Source = "manual"
)

// Utterance is a single piece of user input handed to the resolver.
type Utterance struct {
	ID        string
	Text      string
	Source    Source
	Timestamp time.Time
}

func NewUtterance(text string, source Source) Utterance {
	return Utterance{
		ID:        uuid.NewString(),
		Text:      strings.TrimSpace(text),
		Source:    source,
		Timestamp: time.Now(),
	}
}
