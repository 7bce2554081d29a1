// Package events defines the typed event contract of the conversation loop.
//
// Every input the conversation reacts to arrives as one of these events on a
// single queue. Event kinds are grouped by namespace:
//
//   - user_input.*
//   - capture.*
//   - resolution.*
//   - assistant_playback.*
//   - conversation.*
//
// Events produced by an asynchronous source carry the generation (or turn id)
// that source was started with. The receiver drops events whose generation is
// no longer current, which is how late callbacks of a stopped capture or a
// cancelled playback are made harmless.
//
// user_input events
//
//   - UserTranscriptInterim (user_input.transcript_interim): mutable interim
//     transcript snapshot.
//   - UserTranscriptFinal (user_input.transcript_final): terminal transcript
//     of a capture session, possibly empty.
//   - ManualTextEdited (user_input.manual_text_edited): new content of the
//     manual entry field.
//   - ManualTextSubmitted (user_input.manual_text_submitted): manual entry
//     submitted.
//   - UserTextSubmitted (user_input.text_submitted): typed text submitted
//     without the manual entry field.
//   - ListenRequested (user_input.listen_requested): explicit start of
//     listening.
//
// capture events
//
//   - CaptureEnded (capture.ended): session ended without a transcript.
//   - CaptureFailed (capture.failed): session ended with no-speech, aborted
//     or other error.
//   - CaptureUnavailable (capture.unavailable): voice input is not usable.
//
// resolution events
//
//   - IntentResolved (resolution.intent_resolved): utterance classified.
//   - ResolutionFailed (resolution.failed): network or malformed reply error.
//
// assistant_playback events
//
//   - AssistantPlaybackEnded (assistant_playback.ended): spoken reply
//     finished.
//   - AssistantPlaybackFailed (assistant_playback.failed): spoken reply could
//     not be played.
//
// conversation events
//
//   - ListenRearmed (conversation.listen_rearmed): scheduled re-entry into
//     listening is due.
//   - StateChanged (conversation.state_changed): state machine transition.
//   - DisplayUpdated (conversation.display_updated): new display text.
//   - InputRejected (conversation.input_rejected): input dropped because a
//     turn is in flight.
package events
