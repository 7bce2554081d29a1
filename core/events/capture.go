package events

const (
	KindCaptureEnded       Kind = "capture.ended"
	KindCaptureFailed      Kind = "capture.failed"
	KindCaptureUnavailable Kind = "capture.unavailable"
)

// CaptureFailureReason classifies a capture session error.
type CaptureFailureReason string

const (
	CaptureFailureNoSpeech CaptureFailureReason = "no-speech"
	CaptureFailureAborted  CaptureFailureReason = "aborted"
	CaptureFailureOther    CaptureFailureReason = "other"
)

// CaptureEnded marks a capture session that ended without a transcript.
type CaptureEnded struct {
	Base
	Generation uint64
}

func NewCaptureEnded(generation uint64) CaptureEnded {
	return CaptureEnded{Base: NewBase(KindCaptureEnded), Generation: generation}
}

// CaptureFailed marks a capture session that ended with an error.
type CaptureFailed struct {
	Base
	Generation uint64
	Reason     CaptureFailureReason
	Err        error
}

func NewCaptureFailed(generation uint64, reason CaptureFailureReason, err error) CaptureFailed {
	return CaptureFailed{Base: NewBase(KindCaptureFailed), Generation: generation, Reason: reason, Err: err}
}

// CaptureUnavailable marks that voice capture cannot be used in this session.
type CaptureUnavailable struct {
	Base
	Err error
}

func NewCaptureUnavailable(err error) CaptureUnavailable {
	return CaptureUnavailable{Base: NewBase(KindCaptureUnavailable), Err: err}
}
