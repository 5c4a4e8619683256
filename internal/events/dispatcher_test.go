package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherOrderAndUnsubscribe(t *testing.T) {
	var d Dispatcher
	var got []string
	d.AddListener("added", func(e Event) { got = append(got, "first:"+e.Data.(string)) })
	remove := d.AddListener("added", func(e Event) { got = append(got, "second:"+e.Data.(string)) })
	d.AddListener("removed", func(e Event) { got = append(got, "removed") })

	assert.True(t, d.HasListener("added"))
	d.Dispatch("added", "a")
	remove()
	d.Dispatch("added", "b")

	assert.Equal(t, []string{"first:a", "second:a", "first:b"}, got)
}

func TestDispatcherListenerMayUnsubscribeDuringDispatch(t *testing.T) {
	var d Dispatcher
	calls := 0
	var remove func()
	remove = d.AddListener("x", func(Event) {
		calls++
		remove()
	})
	d.Dispatch("x", nil)
	d.Dispatch("x", nil)
	assert.Equal(t, 1, calls)
	assert.False(t, d.HasListener("x"))
}

func TestDispatcherRemoveAll(t *testing.T) {
	var d Dispatcher
	d.AddListener("a", func(Event) {})
	d.AddListener("b", func(Event) {})
	d.RemoveAll("a")
	assert.False(t, d.HasListener("a"))
	assert.True(t, d.HasListener("b"))
	d.RemoveAll("")
	assert.False(t, d.HasListener("b"))
}
