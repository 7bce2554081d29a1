package miniaudio

import "sync"

type playbackMark struct {
	name     string
	position int
	callback func(string)
}

// playbackBuffer holds audio waiting for the device together with marks
// placed at byte positions inside it.
type playbackBuffer struct {
	audio []byte
	marks []playbackMark
	mu    sync.Mutex
}

func (b *playbackBuffer) append(audio []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = append(b.audio, audio...)
}

func (b *playbackBuffer) mark(name string, callback func(string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.marks = append(b.marks, playbackMark{
		name:     name,
		position: len(b.audio),
		callback: callback,
	})
}

// clear drops buffered audio. Pending marks are dropped without being called.
func (b *playbackBuffer) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = nil
	b.marks = nil
}

// take copies up to len(out) bytes into out, zero fills the rest and returns
// the marks that were passed.
func (b *playbackBuffer) take(out []byte) []playbackMark {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := copy(out, b.audio)
	clear(out[n:])
	b.audio = b.audio[n:]
	if len(b.audio) == 0 {
		b.audio = nil
	}

	// marks are kept in position order
	passed := 0
	for passed < len(b.marks) && b.marks[passed].position <= n {
		passed++
	}
	for i := passed; i < len(b.marks); i++ {
		b.marks[i].position -= n
	}
	if passed == 0 {
		return nil
	}

	reached := b.marks[:passed:passed]
	b.marks = b.marks[passed:]
	return reached
}

func (b *playbackBuffer) buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.audio)
}

func callMarks(marks []playbackMark) {
	for _, mark := range marks {
		if mark.callback != nil {
			mark.callback(mark.name)
		}
	}
}
