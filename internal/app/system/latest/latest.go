// Package latest keeps only the newest in-flight request per client and
// channel. Starting a request cancels the previous one so a slow, stale
// search can never overwrite a newer result.
package latest

import (
	"context"
	"sync"
)

type entry struct {
	seq    uint64
	cancel context.CancelFunc
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	seq  uint64
	live map[string]entry
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{live: make(map[string]entry)}
}

// Begin cancels the previous request for (client, channel) and returns a
// context for the new one with its sequence number. done must be called
// when the request finishes.
func (t *Tracker) Begin(parent context.Context, client, channel string) (ctx context.Context, seq uint64, done func()) {
	key := client + "\x00" + channel
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	t.seq++
	seq = t.seq
	if prev, ok := t.live[key]; ok {
		prev.cancel()
	}
	t.live[key] = entry{seq: seq, cancel: cancel}
	t.mu.Unlock()

	done = func() {
		t.mu.Lock()
		if cur, ok := t.live[key]; ok && cur.seq == seq {
			delete(t.live, key)
		}
		t.mu.Unlock()
		cancel()
	}
	return ctx, seq, done
}

// Current reports whether seq is still the newest request for the key.
func (t *Tracker) Current(client, channel string, seq uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.live[client+"\x00"+channel]
	return ok && cur.seq == seq
}

// Len is the number of in-flight requests.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}
