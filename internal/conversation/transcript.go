package conversation

import (
	"sync"
	"time"

	"github.com/kalambet/faultchat/internal/format"
)

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content is the rendered payload of an entry. Text is always set; at most
// one of the structured renderings accompanies it.
type Content struct {
	Text          string                        `json:"text"`
	Diagnosis     *format.RenderedDiagnosis     `json:"diagnosis,omitempty"`
	Clarification *format.RenderedClarification `json:"clarification,omitempty"`
	Failure       string                        `json:"failure,omitempty"`
}

// Entry is one transcript line. Seq starts at 1 and increases by one per
// append until the transcript is cleared.
type Entry struct {
	Seq     int       `json:"seq"`
	Role    Role      `json:"role"`
	Content Content   `json:"content"`
	At      time.Time `json:"at"`
}

// EventType discriminates Event.
type EventType string

const (
	EventAppend EventType = "append"
	EventReset  EventType = "reset"
)

// Event is delivered to transcript subscribers.
type Event struct {
	Type  EventType `json:"type"`
	Entry *Entry    `json:"entry,omitempty"`
}

// Transcript is an append-only, clearable sequence of entries.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
	subs    map[int]chan Event
	nextSub int
	now     func() time.Time
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{subs: make(map[int]chan Event), now: time.Now}
}

// Append adds an entry and notifies subscribers.
func (t *Transcript) Append(role Role, content Content) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := Entry{
		Seq:     len(t.entries) + 1,
		Role:    role,
		Content: content,
		At:      t.now().UTC(),
	}
	t.entries = append(t.entries, e)
	t.broadcast(Event{Type: EventAppend, Entry: &e})
	return e
}

// Clear empties the transcript and restarts numbering.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.broadcast(Event{Type: EventReset})
}

// Entries returns a copy of the current entries.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Subscribe returns a channel receiving every subsequent event and a function
// that unsubscribes and closes it. Events are dropped for a subscriber whose
// buffer is full.
func (t *Transcript) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
			close(ch)
		})
	}
}

// broadcast must be called with t.mu held.
func (t *Transcript) broadcast(ev Event) {
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
