package browser

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectorDropsOverflow(t *testing.T) {
	c := NewCollector(3)
	for i := 0; i < 5; i++ {
		c.Push(Response{URL: fmt.Sprintf("https://example.com/%d", i), Body: []byte("{}")})
	}
	require.Equal(t, 3, c.Len())
	require.Equal(t, 2, c.Dropped())

	drained := c.Drain()
	require.Len(t, drained, 3)
	require.Equal(t, "https://example.com/0", drained[0].URL)
	require.Equal(t, "https://example.com/2", drained[2].URL)
	require.Equal(t, 0, c.Len())
	require.True(t, c.Push(Response{URL: "https://example.com/again"}))
}

func TestCollectorConcurrentPush(t *testing.T) {
	c := NewCollector(0)
	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Push(Response{URL: "https://example.com"})
		}()
	}
	wg.Wait()
	require.Equal(t, DefaultCollectorCapacity, c.Len())
	require.Equal(t, 100-DefaultCollectorCapacity, c.Dropped())
}

func TestFirstVisible(t *testing.T) {
	elements := []Element{
		{Text: "TPE Taipei", Visible: false},
		{Text: "Taoyuan TPE", Visible: true},
		{Text: "other", Visible: true},
	}
	require.Equal(t, 1, FirstVisible(elements, "tpe"))
	require.Equal(t, 1, FirstVisible(elements, ""))
	require.Equal(t, -1, FirstVisible(elements, "SFO"))
}
