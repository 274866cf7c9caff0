// util/eventstream_test.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"math/rand"
	"testing"

	"github.com/covey-uas/covey/log"
)

type testEvent struct {
	Type int
}

func TestEventStream(t *testing.T) {
	es := NewEventStream[testEvent](log.New(false, "debug", ""))
	defer es.Destroy()

	es.Post(testEvent{})
	sub := es.Subscribe()
	if len(sub.Get()) != 0 {
		t.Errorf("Returned non-empty slice")
	}

	es.Post(testEvent{Type: 1})
	es.Post(testEvent{Type: 2})
	s := sub.Get()
	if len(s) != 2 {
		t.Errorf("didn't return 2 item slice")
	}

	if s[0].Type != 1 {
		t.Errorf("Expected type 1, got %v", s[0])
	}
	if s[1].Type != 2 {
		t.Errorf("Expected type 2, got %v", s[1])
	}

	if len(sub.Get()) != 0 {
		t.Errorf("Returned non-empty slice")
	}
}

// Exercises Subscribe against a concurrent Post; run with -race.
func TestEventStreamConcurrentSubscribe(t *testing.T) {
	es := NewEventStream[testEvent](log.New(false, "debug", ""))
	defer es.Destroy()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 1000 {
			es.Post(testEvent{Type: i})
		}
	}()
	for range 100 {
		sub := es.Subscribe()
		sub.Get()
		sub.Unsubscribe()
	}
	<-done
}

func TestEventStreamCompact(t *testing.T) {
	es := NewEventStream[testEvent](log.New(false, "debug", ""))
	defer es.Destroy()

	// multiple consumers, at different offsets
	subs := [4]*EventsSubscription[testEvent]{es.Subscribe(), es.Subscribe(), es.Subscribe(), es.Subscribe()}
	// consume probability
	p := [4]float32{1, 0.75, 0.05, 0.5}
	// next value we expect to get from the stream
	var idx [4]int

	i, iter := 0, 0
	for i < 65536 {
		// Add a bunch of consecutive numbers to the stream
		n := rand.Intn(255)
		for j := 0; j < n; j++ {
			es.Post(testEvent{Type: i + j})
		}
		i += n

		for s := 0; s < 4; s++ {
			if subs[s] == nil || rand.Float32() > p[s] {
				continue
			}
			for _, ev := range subs[s].Get() {
				if ev.Type != idx[s] {
					t.Fatalf("sub %d: expected %d, got %d", s, idx[s], ev.Type)
				}
				idx[s]++
			}
		}

		if iter == 20 {
			subs[1].Unsubscribe()
			subs[1] = nil
		}

		es.mu.Lock()
		es.compact()
		es.mu.Unlock()
		iter++
	}

	// Everyone still subscribed catches up to the end.
	for s := 0; s < 4; s++ {
		if subs[s] == nil {
			continue
		}
		for _, ev := range subs[s].Get() {
			if ev.Type != idx[s] {
				t.Fatalf("sub %d: expected %d, got %d", s, idx[s], ev.Type)
			}
			idx[s]++
		}
		if idx[s] != i {
			t.Errorf("sub %d: consumed %d of %d events", s, idx[s], i)
		}
	}
}
