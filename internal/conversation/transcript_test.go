package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_AppendNumbersEntries(t *testing.T) {
	tr := NewTranscript()
	a := tr.Append(RoleUser, Content{Text: "hi"})
	b := tr.Append(RoleAssistant, Content{Text: "hello"})
	assert.Equal(t, 1, a.Seq)
	assert.Equal(t, 2, b.Seq)

	tr.Clear()
	assert.Zero(t, tr.Len())
	assert.Equal(t, 1, tr.Append(RoleUser, Content{Text: "again"}).Seq)
}

func TestTranscript_EntriesIsACopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(RoleUser, Content{Text: "hi"})
	got := tr.Entries()
	got[0].Content.Text = "changed"
	assert.Equal(t, "hi", tr.Entries()[0].Content.Text)
}

func TestTranscript_Subscribe(t *testing.T) {
	tr := NewTranscript()
	events, cancel := tr.Subscribe(4)

	tr.Append(RoleUser, Content{Text: "hi"})
	tr.Clear()

	ev := <-events
	assert.Equal(t, EventAppend, ev.Type)
	require.NotNil(t, ev.Entry)
	assert.Equal(t, "hi", ev.Entry.Content.Text)
	assert.Equal(t, EventReset, (<-events).Type)

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
	tr.Append(RoleUser, Content{Text: "after"})
}

func TestTranscript_SlowSubscriberDropsEvents(t *testing.T) {
	tr := NewTranscript()
	events, cancel := tr.Subscribe(1)
	defer cancel()

	tr.Append(RoleUser, Content{Text: "one"})
	tr.Append(RoleUser, Content{Text: "two"})
	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, "one", (<-events).Entry.Content.Text)
}
