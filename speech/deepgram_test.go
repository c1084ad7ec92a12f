package speech

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepgramLateMessageAfterCloseIsDropped(t *testing.T) {
	s := &deepgramStream{events: make(chan Event, 16)}

	s.emit(Event{Text: "hello", Reason: ReasonRecognizing})
	s.closeEvents()

	// A callback arriving after close must be a no-op, not a panic.
	s.emit(Event{Text: "late", Reason: ReasonRecognized})

	var got []Event
	for ev := range s.events {
		got = append(got, ev)
	}
	assert.Equal(t, []Event{{Text: "hello", Reason: ReasonRecognizing}}, got)
}

func TestDeepgramCloseIsIdempotent(t *testing.T) {
	s := &deepgramStream{events: make(chan Event, 16)}
	s.closeEvents()
	s.closeEvents()

	_, open := <-s.events
	assert.False(t, open)
}

func TestDeepgramConcurrentEmitAndClose(t *testing.T) {
	s := &deepgramStream{events: make(chan Event, 16)}

	drained := make(chan struct{})
	go func() {
		for range s.events {
		}
		close(drained)
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.emit(Event{Text: "word", Reason: ReasonRecognizing})
			}
		}()
	}
	s.closeEvents()
	wg.Wait()
	<-drained
}
