// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"baws-workers/internal/models"
)

// Call records one request made to the fake.
type Call struct {
	System  string
	Content string
	History []models.ChatTurn
}

// Fake answers every request with Reply unless a hook overrides it.
// FailWhen lets a test fail calls whose system prompt contains a marker.
type Fake struct {
	Reply    string
	Err      error
	Delay    time.Duration
	FailWhen map[string]error
	Respond  func(system, content string) (string, error)

	calls    atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64

	mu  sync.Mutex
	log []Call
}

func (f *Fake) Complete(ctx context.Context, systemPrompt, userContent string) (string, error) {
	return f.do(ctx, Call{System: systemPrompt, Content: userContent})
}

func (f *Fake) Chat(ctx context.Context, systemPrompt string, history []models.ChatTurn, message string) (string, error) {
	h := append([]models.ChatTurn(nil), history...)
	return f.do(ctx, Call{System: systemPrompt, Content: message, History: h})
}

func (f *Fake) do(ctx context.Context, c Call) (string, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.log = append(f.log, c)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	for marker, err := range f.FailWhen {
		if strings.Contains(c.System, marker) {
			return "", err
		}
	}
	if f.Respond != nil {
		return f.Respond(c.System, c.Content)
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}

// Calls returns the number of requests received.
func (f *Fake) Calls() int {
	return int(f.calls.Load())
}

// PeakConcurrency is the highest number of simultaneous requests observed.
func (f *Fake) PeakConcurrency() int {
	return int(f.peak.Load())
}

// Log returns a copy of every recorded request in arrival order.
func (f *Fake) Log() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.log...)
}
