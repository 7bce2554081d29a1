package intents

import "time"

// temporalReply builds the reply of a temporal kind from now. ok is false for
// every other kind.
func temporalReply(kind Kind, now time.Time) (reply string, ok bool) {
	switch kind {
	case KindGetDate:
		return "The current date is " + now.Format("2006-01-02"), true
	case KindGetTime:
		return "The current time is " + now.Format("03:04 PM"), true
	case KindGetDay:
		return "Today is " + now.Format("Monday"), true
	case KindGetMonth:
		return "The current month is " + now.Format("January"), true
	}
	return "", false
}
