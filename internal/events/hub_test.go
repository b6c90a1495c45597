package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFansOut(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish("one")

	assert.Equal(t, "one", <-a)
	assert.Equal(t, "one", <-b)
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	// fill the buffer and keep publishing; Publish must never block
	for i := 0; i < 30; i++ {
		h.Publish("evt")
	}
	assert.Len(t, ch, 10)
}

func TestUnsubscribedClientGetsNothing(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	h.Unsubscribe(ch)

	h.Publish("evt")
	_, open := <-ch
	assert.False(t, open)
}

func TestMakeEnvelope(t *testing.T) {
	msg := Make(TypeRunFinished, RunEvent{RunID: "run-1", State: "completed"})

	var evt Event
	require.NoError(t, json.Unmarshal([]byte(msg), &evt))
	assert.Equal(t, TypeRunFinished, evt.Type)
	assert.False(t, evt.At.IsZero())

	var payload RunEvent
	require.NoError(t, json.Unmarshal(evt.Data, &payload))
	assert.Equal(t, "run-1", payload.RunID)
	assert.Equal(t, "completed", payload.State)
}
