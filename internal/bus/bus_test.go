package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := NewMemory()
	var got []string

	b.Subscribe("doc.edit", func(p any) { got = append(got, "first:"+p.(string)) })
	b.Subscribe("doc.edit", func(p any) { got = append(got, "second:"+p.(string)) })
	b.Subscribe("other", func(p any) { got = append(got, "other") })

	b.Publish("doc.edit", "x")

	assert.Equal(t, []string{"first:x", "second:x"}, got)
}

func TestMemoryUnsubscribe(t *testing.T) {
	b := NewMemory()
	count := 0

	sub := b.Subscribe("e", func(any) { count++ })
	b.Publish("e", nil)
	sub.Unsubscribe()
	sub.Unsubscribe()
	b.Publish("e", nil)

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, b.SubscriberCount("e"))
}

func TestMemoryUnsubscribeKeepsOthers(t *testing.T) {
	b := NewMemory()
	var got []int

	s1 := b.Subscribe("e", func(any) { got = append(got, 1) })
	b.Subscribe("e", func(any) { got = append(got, 2) })
	s1.Unsubscribe()

	b.Publish("e", nil)
	assert.Equal(t, []int{2}, got)
}

func TestMemoryHandlerMayPublish(t *testing.T) {
	b := NewMemory()
	var got []string

	b.Subscribe("a", func(any) { b.Publish("b", "nested") })
	b.Subscribe("b", func(p any) { got = append(got, p.(string)) })

	b.Publish("a", nil)
	assert.Equal(t, []string{"nested"}, got)
}

func TestMemoryConcurrentPublish(t *testing.T) {
	b := NewMemory()
	var mu sync.Mutex
	count := 0
	b.Subscribe("e", func(any) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish("e", nil)
		}()
	}
	wg.Wait()

	require.Equal(t, 50, count)
}
